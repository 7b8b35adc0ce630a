package model

import (
	"fmt"

	"go.uber.org/zap"

	"underwrite/pkg/amort"
	"underwrite/pkg/daycount"
)

// Legacy single-facility debt fields synthesize tranches under these names.
const (
	ExistingDebtName = "Existing Debt"
	NewFacilityName  = "New Facility"
)

// NormalizedDebt carries the canonical tranche list derived from a model's
// debt configuration, plus any warnings raised while resolving it.
type NormalizedDebt struct {
	Tranches []amort.Tranche
	Warnings []string
}

// TotalPrincipal returns the combined face amount across all tranches.
func (d *NormalizedDebt) TotalPrincipal() float64 {
	var total float64
	for _, tranche := range d.Tranches {
		total += tranche.Amount
	}
	return total
}

// NormalizeDebt converts the model's debt configuration into the canonical
// tranche list that feeds the scheduler. Exactly one representation is used:
// when explicit tranches are present the legacy single-facility fields are
// ignored with a warning rather than double counted.
func (p *Params) NormalizeDebt(logger *zap.Logger) (*NormalizedDebt, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	normalized := &NormalizedDebt{}

	defaultConvention, warning, err := p.resolveConvention(p.DayCountConvention, "dayCountConvention")
	if err != nil {
		return nil, err
	}
	if warning != "" {
		normalized.Warnings = append(normalized.Warnings, warning)
	}

	if len(p.Tranches) > 0 {
		if p.OpeningDebt != 0 || p.RequestedLoanAmount != 0 {
			normalized.Warnings = append(normalized.Warnings,
				"explicit tranches take precedence; ignoring openingDebt and requestedLoanAmount to avoid double counting")
		}
		for i, tc := range p.Tranches {
			tranche, warnings, err := p.resolveTranche(tc, i, defaultConvention)
			if err != nil {
				return nil, err
			}
			normalized.Warnings = append(normalized.Warnings, warnings...)
			normalized.Tranches = append(normalized.Tranches, tranche)
		}
	} else {
		synthesized, err := p.synthesizeLegacyTranches(defaultConvention)
		if err != nil {
			return nil, err
		}
		normalized.Tranches = synthesized
	}

	logger.Debug("normalized debt configuration",
		zap.String("op", "model.NormalizeDebt"),
		zap.Int("Tranches", len(normalized.Tranches)),
		zap.Float64("TotalPrincipal", normalized.TotalPrincipal()),
	)

	return normalized, nil
}

// resolveTranche maps one configured tranche onto the scheduler's input,
// resolving maturity, style, frequency, and convention.
func (p *Params) resolveTranche(tc TrancheConfig, index int, defaultConvention daycount.Convention) (amort.Tranche, []string, error) {
	var warnings []string

	name := tc.Name
	if name == "" {
		name = fmt.Sprintf("Tranche %d", index+1)
	}

	tenor, err := p.resolveTenor(tc, name)
	if err != nil {
		return amort.Tranche{}, nil, err
	}

	style, err := amort.ParseStyle(tc.Amortization)
	if err != nil {
		return amort.Tranche{}, nil, &ValidationError{
			Field:  fmt.Sprintf("tranches[%d].amortization", index),
			Reason: err.Error(),
		}
	}

	frequency, err := amort.ParseFrequency(tc.PaymentFrequency)
	if err != nil {
		return amort.Tranche{}, nil, &ValidationError{
			Field:  fmt.Sprintf("tranches[%d].paymentFrequency", index),
			Reason: err.Error(),
		}
	}

	convention := defaultConvention
	if tc.DayCountConvention != "" {
		resolved, warning, err := p.resolveConvention(tc.DayCountConvention, fmt.Sprintf("tranches[%d].dayCountConvention", index))
		if err != nil {
			return amort.Tranche{}, nil, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		convention = resolved
	}

	tranche := amort.Tranche{
		Name:               name,
		Amount:             tc.Amount,
		Rate:               tc.Rate,
		Convention:         convention,
		TenorYears:         tenor,
		InterestOnlyYears:  tc.InterestOnlyYears,
		Style:              style,
		BalloonPct:         tc.BalloonPct,
		CustomPrincipalPct: tc.CustomPrincipalPct,
		PaymentsPerYear:    frequency,
		Seniority:          tc.Seniority,
	}

	return tranche, warnings, nil
}

// resolveTenor turns a tranche's maturity into a relative tenor in years.
// An absolute maturityYear takes precedence over tenorYears; the model-level
// debtTenorYears is the fallback when the tranche specifies neither.
func (p *Params) resolveTenor(tc TrancheConfig, name string) (int, error) {
	if tc.MaturityYear > 0 {
		tenor := tc.MaturityYear - p.StartYear + 1
		if tenor < 1 {
			return 0, &ValidationError{
				Field:  "maturityYear",
				Reason: fmt.Sprintf("tranche %q matures in %d, before the %d start year", name, tc.MaturityYear, p.StartYear),
			}
		}
		return tenor, nil
	}
	if tc.TenorYears > 0 {
		return tc.TenorYears, nil
	}
	if p.DebtTenorYears > 0 {
		return p.DebtTenorYears, nil
	}
	return 0, &ValidationError{
		Field:  "tenorYears",
		Reason: fmt.Sprintf("tranche %q needs tenorYears, maturityYear, or a model-level debtTenorYears", name),
	}
}

// synthesizeLegacyTranches builds the canonical tranche list from the
// single-facility fields. Existing debt and the requested facility become
// separate tranches sharing the facility terms.
func (p *Params) synthesizeLegacyTranches(defaultConvention daycount.Convention) ([]amort.Tranche, error) {
	if p.OpeningDebt < 0 {
		return nil, &ValidationError{Field: "openingDebt", Reason: "must not be negative"}
	}
	if p.RequestedLoanAmount < 0 {
		return nil, &ValidationError{Field: "requestedLoanAmount", Reason: "must not be negative"}
	}
	if p.OpeningDebt == 0 && p.RequestedLoanAmount == 0 {
		return nil, nil
	}
	if p.DebtTenorYears < 1 {
		return nil, &ValidationError{
			Field:  "debtTenorYears",
			Reason: "required when openingDebt or requestedLoanAmount is set",
		}
	}

	style, err := amort.ParseStyle(p.Amortization)
	if err != nil {
		return nil, &ValidationError{Field: "amortization", Reason: err.Error()}
	}
	frequency, err := amort.ParseFrequency(p.PaymentFrequency)
	if err != nil {
		return nil, &ValidationError{Field: "paymentFrequency", Reason: err.Error()}
	}

	var tranches []amort.Tranche
	synthesize := func(name string, amount float64) {
		tranches = append(tranches, amort.Tranche{
			Name:               name,
			Amount:             amount,
			Rate:               p.InterestRate,
			Convention:         defaultConvention,
			TenorYears:         p.DebtTenorYears,
			InterestOnlyYears:  p.InterestOnlyYears,
			Style:              style,
			BalloonPct:         p.BalloonPct,
			CustomPrincipalPct: p.CustomPrincipalPct,
			PaymentsPerYear:    frequency,
		})
	}
	if p.OpeningDebt > 0 {
		synthesize(ExistingDebtName, p.OpeningDebt)
	}
	if p.RequestedLoanAmount > 0 {
		synthesize(NewFacilityName, p.RequestedLoanAmount)
	}

	return tranches, nil
}

// resolveConvention parses a day-count convention string. In lenient mode an
// unknown convention falls back to the default with a warning instead of
// failing the run.
func (p *Params) resolveConvention(raw, field string) (daycount.Convention, string, error) {
	convention, err := daycount.ParseConvention(raw)
	if err != nil {
		if p.Lenient {
			warning := fmt.Sprintf("unknown day-count convention %q for %s; using %s", raw, field, daycount.DefaultConvention)
			return daycount.DefaultConvention, warning, nil
		}
		return "", "", &ValidationError{Field: field, Reason: err.Error()}
	}
	return convention, "", nil
}
