package amort

import (
	"fmt"

	"go.uber.org/zap"

	"underwrite/pkg/constants"
	"underwrite/pkg/daycount"
	"underwrite/pkg/mathutil"
)

// ScheduleGenerator generates annual amortization schedules.
type ScheduleGenerator struct {
	logger  *zap.Logger
	lenient bool
}

// NewScheduleGenerator creates a strict generator. Invalid custom principal
// plans are errors.
func NewScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGenerator{logger: logger}
}

// NewLenientScheduleGenerator creates a generator that downgrades a custom
// principal plan summing away from full repayment to level amortization with
// a warning instead of failing.
func NewLenientScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	g := NewScheduleGenerator(logger)
	g.lenient = true
	return g
}

// Generate creates a tranche's schedule across the projection horizon.
// Principal payments sum to the tranche amount whenever maturity falls inside
// the horizon; entries past maturity or past full repayment are zero-filled.
func (g *ScheduleGenerator) Generate(t Tranche, years int) (*Schedule, error) {
	if err := validateTranche(t, years); err != nil {
		return nil, err
	}

	conv := t.Convention
	if conv == "" {
		conv = daycount.DefaultConvention
	}
	effRate, err := daycount.EffectiveAnnualRate(t.Rate, conv)
	if err != nil {
		return nil, fmt.Errorf("tranche %q: %w", t.Name, err)
	}

	paymentsPerYear := t.PaymentsPerYear
	if paymentsPerYear == 0 {
		paymentsPerYear = constants.AnnualPayments
	}

	s := &Schedule{Tranche: t, Entries: make([]Entry, years)}

	// The amortizing period always has at least one year so principal is due
	// by maturity even when the interest-only period covers the whole tenor.
	amortYears := t.TenorYears - t.InterestOnlyYears
	if amortYears < 1 {
		amortYears = 1
	}
	ioYears := t.TenorYears - amortYears

	if years <= ioYears && t.Amount > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"tranche %q pays no principal within the %d year horizon (interest-only through year %d)",
			t.Name, years, ioYears))
	}

	style := t.Style
	if style == "" {
		style = StyleLevel
	}

	var customPct []float64
	if style == StyleCustom {
		customPct, err = g.resolveCustomPlan(t, amortYears, s)
		if err != nil {
			return nil, err
		}
		if customPct == nil {
			style = StyleLevel
		}
	}

	var balloonAmount float64
	if style == StyleBalloon {
		balloonAmount = mathutil.ApplyPercentage(t.Amount, t.BalloonPct)
	}

	balance := t.Amount
	for y := 1; y <= years; y++ {
		e := Entry{Year: y, PaymentsInYear: paymentsPerYear}
		if y > t.TenorYears || mathutil.IsZero(balance) {
			s.Entries[y-1] = e
			continue
		}

		e.Interest = balance * effRate

		var principal float64
		amortIdx := y - ioYears
		switch style {
		case StyleLevel:
			if amortIdx >= 1 {
				remaining := amortYears - amortIdx + 1
				principal = balance / float64(remaining)
			}
		case StyleInterestOnly, StyleBullet:
			if y == t.TenorYears {
				principal = balance
			}
		case StyleBalloon:
			if amortIdx >= 1 {
				principal = (t.Amount - balloonAmount) / float64(amortYears)
			}
			if y == t.TenorYears {
				principal += balloonAmount
			}
		case StyleCustom:
			if amortIdx >= 1 {
				principal = mathutil.ApplyPercentage(t.Amount, customPct[amortIdx-1])
			}
		}

		// Retire the remaining balance exactly at maturity or when rounding
		// would otherwise leave machine error behind.
		if y == t.TenorYears || principal > balance || mathutil.Round(balance-principal) == 0 {
			principal = balance
		}

		e.Principal = principal
		e.TotalPayment = e.Interest + principal
		balance -= principal
		if mathutil.Round(balance) == 0 {
			balance = 0
		}
		e.EndingBalance = balance
		s.Entries[y-1] = e
	}

	g.logger.Debug(fmt.Sprintf("generated %s schedule for tranche %q over %d years", style, t.Name, years),
		zap.String("op", "amort.Generate"),
	)

	return s, nil
}

// resolveCustomPlan returns per-amortizing-year principal percentages summing
// to exactly 100. A four-element plan shorter or longer than the amortizing
// period is treated as interval buckets and spread evenly across it. A plan
// whose sum strays more than the tolerance from 100 is an error, or a nil
// plan (level fallback) with a warning under the lenient mode.
func (g *ScheduleGenerator) resolveCustomPlan(t Tranche, amortYears int, s *Schedule) ([]float64, error) {
	plan := t.CustomPrincipalPct
	if len(plan) == 0 {
		return nil, &InvalidAmortizationError{Tranche: t.Name, Field: "customPrincipalPct",
			Reason: "custom amortization requires principal percentages"}
	}

	for _, pct := range plan {
		if !mathutil.IsFinite(pct) || pct < 0 {
			return nil, &InvalidAmortizationError{Tranche: t.Name, Field: "customPrincipalPct",
				Reason: fmt.Sprintf("percentages must be finite and non-negative, got %v", pct)}
		}
	}

	if len(plan) != amortYears {
		if len(plan) != 4 {
			return nil, &InvalidAmortizationError{Tranche: t.Name, Field: "customPrincipalPct",
				Reason: fmt.Sprintf("expected %d yearly percentages or 4 interval buckets, got %d", amortYears, len(plan))}
		}
		plan = expandIntervals(plan, amortYears)
	}

	var sum float64
	for _, pct := range plan {
		sum += pct
	}
	if !mathutil.WithinTolerance(sum, constants.PercentageMultiplier, constants.CustomScheduleTolerance) {
		if !g.lenient {
			return nil, &InvalidAmortizationError{Tranche: t.Name, Field: "customPrincipalPct",
				Reason: fmt.Sprintf("percentages sum to %.2f, expected 100", sum)}
		}
		warning := fmt.Sprintf("tranche %q custom percentages sum to %.2f; falling back to level amortization", t.Name, sum)
		s.Warnings = append(s.Warnings, warning)
		g.logger.Warn(warning, zap.String("op", "amort.resolveCustomPlan"))
		return nil, nil
	}

	// Scale away any in-tolerance drift so principal sums to the amount.
	normalized := make([]float64, len(plan))
	scale := constants.PercentageMultiplier / sum
	for i, pct := range plan {
		normalized[i] = pct * scale
	}
	return normalized, nil
}

// expandIntervals spreads four interval bucket percentages evenly across the
// amortizing period.
func expandIntervals(buckets []float64, amortYears int) []float64 {
	counts := make([]int, len(buckets))
	for y := 0; y < amortYears; y++ {
		counts[y*len(buckets)/amortYears]++
	}
	plan := make([]float64, 0, amortYears)
	for b, count := range counts {
		for i := 0; i < count; i++ {
			plan = append(plan, buckets[b]/float64(count))
		}
	}
	return plan
}

func validateTranche(t Tranche, years int) error {
	if years < constants.MinProjectionYears {
		return &InvalidAmortizationError{Tranche: t.Name, Field: "years",
			Reason: fmt.Sprintf("projection horizon must be at least %d year, got %d", constants.MinProjectionYears, years)}
	}
	if !mathutil.IsFinite(t.Amount) {
		return &InvalidAmortizationError{Tranche: t.Name, Field: "amount", Reason: "amount must be a finite number"}
	}
	if t.Amount < 0 {
		return &InvalidAmortizationError{Tranche: t.Name, Field: "amount",
			Reason: fmt.Sprintf("amount must not be negative, got %v", t.Amount)}
	}
	if t.TenorYears < 1 {
		return &InvalidAmortizationError{Tranche: t.Name, Field: "tenorYears",
			Reason: fmt.Sprintf("tenor must be at least 1 year, got %d", t.TenorYears)}
	}
	if t.InterestOnlyYears < 0 {
		return &InvalidAmortizationError{Tranche: t.Name, Field: "interestOnlyYears",
			Reason: fmt.Sprintf("interest-only years must not be negative, got %d", t.InterestOnlyYears)}
	}
	if t.Style == StyleBalloon && (t.BalloonPct < 0 || t.BalloonPct > constants.PercentageMultiplier) {
		return &InvalidAmortizationError{Tranche: t.Name, Field: "balloonPct",
			Reason: fmt.Sprintf("balloon percentage must be between 0 and 100, got %v", t.BalloonPct)}
	}
	switch t.Style {
	case "", StyleLevel, StyleInterestOnly, StyleBullet, StyleBalloon, StyleCustom:
	default:
		return &InvalidAmortizationError{Tranche: t.Name, Field: "amortizationStyle",
			Reason: fmt.Sprintf("unknown style %q", t.Style)}
	}
	return nil
}
