package model

import (
	"fmt"
	"strings"

	"underwrite/pkg/constants"
	"underwrite/pkg/mathutil"
	"underwrite/pkg/validation"
	"underwrite/pkg/valuation"
)

// ValidationError reports a model parameter outside its valid range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// ResolveTerminalMethod maps the configured terminal method onto the
// valuation engine's method, defaulting to the perpetuity growth model.
func (p *Params) ResolveTerminalMethod() (valuation.TerminalMethod, error) {
	switch strings.ToLower(strings.TrimSpace(p.TerminalMethod)) {
	case "", string(valuation.TerminalPerpetuity):
		return valuation.TerminalPerpetuity, nil
	case string(valuation.TerminalExitMultiple), "exit_multiple", "exitmultiple":
		return valuation.TerminalExitMultiple, nil
	default:
		return "", &ValidationError{
			Field:  "terminalMethod",
			Reason: fmt.Sprintf("unknown method %q, want perpetuity or exit-multiple", p.TerminalMethod),
		}
	}
}

// Validate checks the parameter set for hard errors. It returns the first
// violation found so callers fail before any projection rows are produced.
func (p *Params) Validate() error {
	if p.Years < constants.MinProjectionYears || p.Years > constants.MaxProjectionYears {
		return &ValidationError{
			Field:  "years",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", constants.MinProjectionYears, constants.MaxProjectionYears, p.Years),
		}
	}

	finiteChecks := []struct {
		field string
		value float64
	}{
		{"baseRevenue", p.BaseRevenue},
		{"growth", p.Growth},
		{"cogsPct", p.COGSPct},
		{"opexPct", p.OpexPct},
		{"capexPct", p.CapexPct},
		{"daPctOfPPE", p.DAPctOfPPE},
		{"wcPctOfRevenue", p.WCPctOfRevenue},
		{"taxRate", p.TaxRate},
		{"cashRetentionPct", p.CashRetention()},
		{"openingCash", p.OpeningCash},
		{"openingPPE", p.OpeningPPE},
		{"wacc", p.WACC},
		{"terminalGrowth", p.TerminalGrowth},
		{"exitMultiple", p.ExitMultiple},
		{"sharesOutstanding", p.SharesOutstanding},
		{"cashAtValuation", p.ValuationCash()},
		{"associatesValue", p.AssociatesValue},
		{"minorityInterest", p.MinorityInterest},
		{"equityContribution", p.EquityContribution},
	}
	for _, check := range finiteChecks {
		if !mathutil.IsFinite(check.value) {
			return &ValidationError{Field: check.field, Reason: "must be a finite number"}
		}
	}

	if p.BaseRevenue < 0 {
		return &ValidationError{Field: "baseRevenue", Reason: "must not be negative"}
	}

	fractionChecks := []struct {
		field string
		value float64
	}{
		{"cogsPct", p.COGSPct},
		{"opexPct", p.OpexPct},
		{"capexPct", p.CapexPct},
		{"daPctOfPPE", p.DAPctOfPPE},
		{"wcPctOfRevenue", p.WCPctOfRevenue},
		{"taxRate", p.TaxRate},
		{"cashRetentionPct", p.CashRetention()},
	}
	for _, check := range fractionChecks {
		if check.value < 0 || check.value > 1 {
			return &ValidationError{
				Field:  check.field,
				Reason: fmt.Sprintf("must be a fraction between 0 and 1, got %g", check.value),
			}
		}
	}

	if p.OpeningPPE < 0 {
		return &ValidationError{Field: "openingPPE", Reason: "must not be negative"}
	}
	if p.EquityContribution < 0 {
		return &ValidationError{Field: "equityContribution", Reason: "must not be negative"}
	}
	if p.SharesOutstanding < 0 {
		return &ValidationError{Field: "sharesOutstanding", Reason: "must not be negative"}
	}

	if p.WACC <= 0 {
		return &ValidationError{Field: "wacc", Reason: fmt.Sprintf("must be positive, got %g", p.WACC)}
	}

	method, err := p.ResolveTerminalMethod()
	if err != nil {
		return err
	}
	switch method {
	case valuation.TerminalPerpetuity:
		if p.WACC <= p.TerminalGrowth {
			return &valuation.TerminalValueError{WACC: p.WACC, Growth: p.TerminalGrowth}
		}
	case valuation.TerminalExitMultiple:
		if p.ExitMultiple <= 0 {
			return &ValidationError{Field: "exitMultiple", Reason: "must be positive when terminalMethod is exit-multiple"}
		}
	}

	return nil
}

// Lints returns advisory warnings about parameter combinations that are
// legal but usually indicate a modeling mistake.
func (p *Params) Lints() []string {
	var warnings []string

	appendWarning := func(w string) {
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	appendWarning(validation.CheckGrowthRate(p.Growth))
	appendWarning(validation.CheckMarginProfile(p.COGSPct, p.OpexPct))
	appendWarning(validation.CheckTerminalSpread(p.WACC, p.TerminalGrowth))

	if len(p.Tranches) > 0 {
		for _, tranche := range p.Tranches {
			name := tranche.Name
			if name == "" {
				name = "tranche"
			}
			appendWarning(validation.CheckInterestRate(name, tranche.Rate))
			tenor := tranche.TenorYears
			if tenor == 0 && tranche.MaturityYear > 0 {
				tenor = tranche.MaturityYear - p.StartYear + 1
			}
			appendWarning(validation.CheckDebtOutlivesHorizon(name, tenor, p.Years))
		}
	} else if p.OpeningDebt > 0 || p.RequestedLoanAmount > 0 {
		appendWarning(validation.CheckInterestRate("facility", p.InterestRate))
		appendWarning(validation.CheckDebtOutlivesHorizon("facility", p.DebtTenorYears, p.Years))
	}

	return warnings
}
