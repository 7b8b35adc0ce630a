package valuation

import (
	"fmt"

	"underwrite/pkg/mathutil"
)

// CostOfEquityCAPM returns the CAPM required return on equity:
// the risk-free rate plus beta times the market risk premium.
func CostOfEquityCAPM(riskFreeRate, beta, marketRiskPremium float64) float64 {
	return riskFreeRate + beta*marketRiskPremium
}

// WACCInput holds the capital structure weights and component costs for a
// weighted average cost of capital.
type WACCInput struct {
	EquityValue  float64 `json:"equityValue"`
	DebtValue    float64 `json:"debtValue"`
	CostOfEquity float64 `json:"costOfEquity"`
	CostOfDebt   float64 `json:"costOfDebt"`
	TaxRate      float64 `json:"taxRate"`
}

// CalculateWACC returns the weighted average cost of capital with the debt
// cost taken after tax. Market values weight the components.
func CalculateWACC(in WACCInput) (float64, error) {
	if !mathutil.AllFinite(in.EquityValue, in.DebtValue, in.CostOfEquity, in.CostOfDebt, in.TaxRate) {
		return 0, &InvalidInputError{Field: "wacc", Reason: "all inputs must be finite"}
	}
	if in.EquityValue < 0 || in.DebtValue < 0 {
		return 0, &InvalidInputError{Field: "wacc", Reason: "capital values must not be negative"}
	}
	total := in.EquityValue + in.DebtValue
	if total <= 0 {
		return 0, &InvalidInputError{Field: "wacc", Reason: "total capital must be positive"}
	}
	if in.TaxRate < 0 || in.TaxRate > 1 {
		return 0, &InvalidInputError{Field: "taxRate",
			Reason: fmt.Sprintf("must be between 0 and 1, got %v", in.TaxRate)}
	}

	equityWeight := in.EquityValue / total
	debtWeight := in.DebtValue / total
	return in.CostOfEquity*equityWeight + in.CostOfDebt*(1-in.TaxRate)*debtWeight, nil
}
