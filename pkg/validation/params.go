// Package validation provides warning-level lints for projection parameters.
//
// Everything here is advisory. Hard shape and range failures are typed errors
// at the model boundary; these checks flag configurations that compute fine
// but usually mean the analyst mistyped something.
package validation

import "fmt"

// CheckGrowthRate warns on growth assumptions beyond what a multi-year
// projection usually sustains.
func CheckGrowthRate(growth float64) string {
	if growth > 0.5 {
		return fmt.Sprintf("revenue growth of %.1f%% per year is unusually aggressive; confirm the rate is a decimal, not a percentage", growth*100)
	}
	if growth < -0.5 {
		return fmt.Sprintf("revenue decline of %.1f%% per year wipes out most revenue within the horizon", growth*100)
	}
	return ""
}

// CheckInterestRate warns on rates that look like mistyped percentages.
func CheckInterestRate(name string, rate float64) string {
	if rate > 0.25 {
		return fmt.Sprintf("tranche %q rate %.1f%% is above typical lending rates; confirm the rate is a decimal, not a percentage", name, rate*100)
	}
	return ""
}

// CheckMarginProfile warns when cost ratios leave no operating margin.
func CheckMarginProfile(cogsPct, opexPct float64) string {
	if cogsPct+opexPct >= 1 {
		return fmt.Sprintf("COGS (%.0f%%) plus opex (%.0f%%) of revenue leaves a non-positive EBITDA margin in every year",
			cogsPct*100, opexPct*100)
	}
	return ""
}

// CheckDebtOutlivesHorizon warns when a tranche matures after the projection
// ends, leaving a balance the projection never retires.
func CheckDebtOutlivesHorizon(name string, tenorYears, horizonYears int) string {
	if tenorYears > horizonYears {
		return fmt.Sprintf("tranche %q matures in year %d, beyond the %d year horizon; its remaining balance stays outstanding",
			name, tenorYears, horizonYears)
	}
	return ""
}

// CheckTerminalSpread warns when the WACC barely clears the terminal growth
// rate, which makes the terminal value swing violently per basis point.
func CheckTerminalSpread(wacc, terminalGrowth float64) string {
	spread := wacc - terminalGrowth
	if spread > 0 && spread < 0.01 {
		return fmt.Sprintf("WACC exceeds terminal growth by only %.2f%%; the terminal value is extremely sensitive at this spread", spread*100)
	}
	return ""
}
