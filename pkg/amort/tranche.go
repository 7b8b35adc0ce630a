// Package amort generates annual amortization schedules for debt tranches
// and aggregates them across a capital structure.
package amort

import (
	"fmt"
	"strings"

	"underwrite/pkg/constants"
	"underwrite/pkg/daycount"
)

// Style selects how a tranche repays principal.
type Style string

// Supported amortization styles.
const (
	// StyleLevel repays equal principal drawdowns across the amortizing
	// period, recomputed from the remaining balance each year.
	StyleLevel Style = "amortizing"

	// StyleInterestOnly pays interest only until maturity, then repays in full.
	StyleInterestOnly Style = "interest-only"

	// StyleBullet repays the entire principal at maturity.
	StyleBullet Style = "bullet"

	// StyleBalloon amortizes level on the non-balloon portion and repays the
	// balloon share at maturity.
	StyleBalloon Style = "balloon"

	// StyleCustom follows an explicit principal percentage plan.
	StyleCustom Style = "custom"
)

// ParseStyle resolves an amortization style from its config spelling. The
// empty string resolves to StyleLevel.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "amortizing", "level":
		return StyleLevel, nil
	case "interest-only", "interest_only", "io":
		return StyleInterestOnly, nil
	case "bullet":
		return StyleBullet, nil
	case "balloon":
		return StyleBalloon, nil
	case "custom":
		return StyleCustom, nil
	default:
		return "", &InvalidAmortizationError{Field: "amortizationStyle", Reason: fmt.Sprintf("unknown style %q", s)}
	}
}

// ParseFrequency resolves a payment frequency name into payments per year.
// The empty string resolves to annual. Frequency is reporting metadata;
// interest accrues on whole years regardless.
func ParseFrequency(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "annual", "annually", "yearly":
		return constants.AnnualPayments, nil
	case "semiannual", "semi-annual", "semiannually":
		return constants.SemiannualPayments, nil
	case "quarterly":
		return constants.QuarterlyPayments, nil
	case "monthly":
		return constants.MonthlyPayments, nil
	default:
		return 0, &InvalidAmortizationError{Field: "paymentFrequency", Reason: fmt.Sprintf("unknown frequency %q", s)}
	}
}

// Tranche describes one debt facility, normalized and ready for scheduling.
// An empty Convention falls back to daycount.DefaultConvention.
type Tranche struct {
	Name               string
	Amount             float64
	Rate               float64
	Convention         daycount.Convention
	TenorYears         int
	InterestOnlyYears  int
	Style              Style
	BalloonPct         float64
	CustomPrincipalPct []float64
	PaymentsPerYear    int
	Seniority          int
}

// Entry is one projection year of a tranche's schedule. Years past maturity
// or past full repayment are zero-filled.
type Entry struct {
	Year           int     `json:"year"`
	Principal      float64 `json:"principal"`
	Interest       float64 `json:"interest"`
	TotalPayment   float64 `json:"totalPayment"`
	EndingBalance  float64 `json:"endingBalance"`
	PaymentsInYear int     `json:"paymentsInYear"`
}

// Schedule is a tranche's annual schedule over the projection horizon.
type Schedule struct {
	Tranche  Tranche  `json:"tranche"`
	Entries  []Entry  `json:"entries"`
	Warnings []string `json:"warnings,omitempty"`
}

// InvalidAmortizationError reports a tranche that cannot be scheduled.
type InvalidAmortizationError struct {
	Tranche string
	Field   string
	Reason  string
}

func (e *InvalidAmortizationError) Error() string {
	if e.Tranche == "" {
		return fmt.Sprintf("invalid amortization: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid amortization for tranche %q: %s: %s", e.Tranche, e.Field, e.Reason)
}
