// Package daycount normalizes quoted interest rates across day count conventions.
//
// The projection engine accrues interest on whole years, so the only
// convention that changes a quoted rate is Actual/360, where a full calendar
// year accrues 365 days of interest on a 360 day basis. The remaining
// conventions differ only at sub-year granularity and pass through unchanged.
package daycount

import (
	"fmt"
	"strings"

	"underwrite/pkg/constants"
	"underwrite/pkg/mathutil"
)

// Convention identifies a day count convention for interest accrual.
type Convention string

// Supported conventions.
const (
	Actual360    Convention = "actual/360"
	Actual365    Convention = "actual/365"
	Thirty360    Convention = "30/360"
	ActualActual Convention = "actual/actual"
)

// DefaultConvention applies when a tranche does not quote one.
const DefaultConvention = Actual365

// InvalidRateError reports a rate that cannot be normalized.
type InvalidRateError struct {
	Rate   float64
	Reason string
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid interest rate %v: %s", e.Rate, e.Reason)
}

// UnknownConventionError reports a day count convention outside the supported set.
type UnknownConventionError struct {
	Convention string
}

func (e *UnknownConventionError) Error() string {
	return fmt.Sprintf("unknown day count convention %q", e.Convention)
}

// ParseConvention resolves a convention from its long or market short form,
// case-insensitively. The empty string resolves to DefaultConvention.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DefaultConvention, nil
	case "ACTUAL/360", "ACT/360":
		return Actual360, nil
	case "ACTUAL/365", "ACT/365", "ACT/365F":
		return Actual365, nil
	case "30/360", "30E/360":
		return Thirty360, nil
	case "ACTUAL/ACTUAL", "ACT/ACT":
		return ActualActual, nil
	default:
		return "", &UnknownConventionError{Convention: s}
	}
}

// EffectiveAnnualRate converts a quoted annual rate to the effective rate for
// whole-year accrual under the given convention. The rate must be finite and
// non-negative; an unrecognized convention is an error, never a silent default.
func EffectiveAnnualRate(rate float64, c Convention) (float64, error) {
	if !mathutil.IsFinite(rate) {
		return 0, &InvalidRateError{Rate: rate, Reason: "rate must be a finite number"}
	}
	if rate < 0 {
		return 0, &InvalidRateError{Rate: rate, Reason: "rate must not be negative"}
	}
	switch c {
	case Actual360:
		return rate * constants.DaysPerYear / constants.Days360, nil
	case Actual365, Thirty360, ActualActual:
		return rate, nil
	default:
		return 0, &UnknownConventionError{Convention: string(c)}
	}
}
