// Package compare audits a projection's embedded valuation against a fresh
// standalone valuation of the same cash flow series. Both paths share one
// engine, so any divergence points at pipeline mis-wiring, most often a
// levered series where an unlevered one belongs.
package compare

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"underwrite/internal/engine"
	"underwrite/internal/model"
	"underwrite/pkg/valuation"
)

// DefaultTolerance is the absolute agreement threshold for each audited
// value.
const DefaultTolerance = 1e-6

// Check is one audited value pair.
type Check struct {
	Name   string  `json:"name"`
	Year   int     `json:"year,omitempty"`
	Engine float64 `json:"engine"`
	Audit  float64 `json:"audit"`
	Delta  float64 `json:"delta"`
	Within bool    `json:"within"`
}

// Report is the outcome of one audit run.
type Report struct {
	RunID           string  `json:"runId"`
	Scenario        string  `json:"scenario,omitempty"`
	Tolerance       float64 `json:"tolerance"`
	Checks          []Check `json:"checks"`
	FirstDivergence *Check  `json:"firstDivergence,omitempty"`
	Agreement       bool    `json:"agreement"`
}

// Auditor re-derives valuations for comparison.
type Auditor struct {
	logger *zap.Logger
}

// NewAuditor creates an Auditor with the provided logger. A nil logger falls
// back to a no-op logger.
func NewAuditor(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{logger: logger}
}

// AuditValuation rebuilds the unlevered cash flow series from the projection
// rows, runs the standalone valuation over it, and diffs every year and
// total against the embedded result. A non-positive tolerance uses
// DefaultTolerance.
func (a *Auditor) AuditValuation(result *engine.Result, params model.Params, tolerance float64) (*Report, error) {
	if result == nil || result.Valuation == nil {
		return nil, fmt.Errorf("no valuation to audit")
	}
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("no projection rows to audit against")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Scenario:  result.ScenarioName,
		Tolerance: tolerance,
		Agreement: true,
	}

	// Rebuild the series from row components rather than trusting the row's
	// own FCF column, so a mis-assembled column shows up as a divergence.
	cashFlows := make([]float64, len(result.Rows))
	for i, row := range result.Rows {
		cashFlows[i] = row.EBIT*(1-params.TaxRate) + row.Depreciation - row.Capex - row.ChangeInWC
	}

	audit, err := valuation.Calculate(valuation.Input{
		CashFlows:         cashFlows,
		WACC:              params.WACC,
		TerminalGrowth:    params.TerminalGrowth,
		Method:            result.Valuation.Method,
		ExitMultiple:      params.ExitMultiple,
		TerminalEBITDA:    result.Rows[len(result.Rows)-1].EBITDA,
		MidYear:           result.Valuation.MidYear,
		NetDebt:           result.Debt.TotalPrincipal() - params.ValuationCash(),
		Associates:        params.AssociatesValue,
		MinorityInterest:  params.MinorityInterest,
		SharesOutstanding: params.SharesOutstanding,
	})
	if err != nil {
		return nil, fmt.Errorf("audit valuation failed, %s", err)
	}

	embedded := result.Valuation
	for i := 0; i < len(embedded.Years) && i < len(audit.Years); i++ {
		year := result.Rows[i].Year
		report.add("cashFlow", year, embedded.Years[i].CashFlow, audit.Years[i].CashFlow, tolerance)
		report.add("discountFactor", year, embedded.Years[i].DiscountFactor, audit.Years[i].DiscountFactor, tolerance)
		report.add("presentValue", year, embedded.Years[i].PresentValue, audit.Years[i].PresentValue, tolerance)
	}

	report.add("terminalValue", 0, embedded.TerminalValue, audit.TerminalValue, tolerance)
	report.add("pvOfProjectedFCFs", 0, embedded.PVOfCashFlows, audit.PVOfCashFlows, tolerance)
	report.add("pvOfTerminalValue", 0, embedded.PVOfTerminalValue, audit.PVOfTerminalValue, tolerance)
	report.add("enterpriseValue", 0, embedded.EnterpriseValue, audit.EnterpriseValue, tolerance)
	report.add("equityValue", 0, embedded.EquityValue, audit.EquityValue, tolerance)

	a.logger.Debug("valuation audit complete",
		zap.String("op", "compare.AuditValuation"),
		zap.String("RunID", report.RunID),
		zap.Bool("Agreement", report.Agreement),
		zap.Int("Checks", len(report.Checks)),
	)

	return report, nil
}

// add records one comparison and tracks the first divergence.
func (r *Report) add(name string, year int, engineValue, auditValue, tolerance float64) {
	delta := engineValue - auditValue
	check := Check{
		Name:   name,
		Year:   year,
		Engine: engineValue,
		Audit:  auditValue,
		Delta:  delta,
		Within: math.Abs(delta) <= tolerance,
	}
	r.Checks = append(r.Checks, check)
	if !check.Within {
		r.Agreement = false
		if r.FirstDivergence == nil {
			divergence := check
			r.FirstDivergence = &divergence
		}
	}
}

// Describe renders a one-line human summary of the report.
func (r *Report) Describe() string {
	if r.Agreement {
		return fmt.Sprintf("valuation audit %s: all %d checks within %g", r.RunID, len(r.Checks), r.Tolerance)
	}
	d := r.FirstDivergence
	if d.Year != 0 {
		return fmt.Sprintf("valuation audit %s: first divergence at %s year %d, engine %.6f vs audit %.6f",
			r.RunID, d.Name, d.Year, d.Engine, d.Audit)
	}
	return fmt.Sprintf("valuation audit %s: first divergence at %s, engine %.6f vs audit %.6f",
		r.RunID, d.Name, d.Engine, d.Audit)
}
