package valuation

import (
	"fmt"
	"math"

	"underwrite/pkg/constants"
)

// IRR solves the internal rate of return of a cash flow series by
// Newton-Raphson iteration. The first element is the time zero flow; each
// subsequent element falls on the next year-end. The series must contain at
// least one inflow and one outflow or no rate can cross zero NPV.
func IRR(cashflows []float64, guess float64) (float64, error) {
	if len(cashflows) < 2 {
		return 0, &InvalidCashFlowError{Index: -1, Reason: "IRR needs at least two cash flows"}
	}
	var hasInflow, hasOutflow bool
	for i, cf := range cashflows {
		if math.IsNaN(cf) || math.IsInf(cf, 0) {
			return 0, &InvalidCashFlowError{Index: i, Value: cf, Reason: "must be a finite number"}
		}
		if cf > 0 {
			hasInflow = true
		}
		if cf < 0 {
			hasOutflow = true
		}
	}
	if !hasInflow || !hasOutflow {
		return 0, &InvalidCashFlowError{Index: -1, Reason: "IRR needs both inflows and outflows"}
	}

	if guess == 0 {
		guess = constants.IRRDefaultGuess
	}

	rate := guess
	for i := 0; i < constants.IRRMaxIterations; i++ {
		npv, derivative := npvWithDerivative(cashflows, rate)
		if math.Abs(npv) < constants.IRRPrecision {
			return rate, nil
		}
		if derivative == 0 {
			return 0, fmt.Errorf("IRR iteration stalled at rate %v", rate)
		}
		next := rate - npv/derivative
		if next <= -1 {
			// A rate at or below -100% has no meaning for annual compounding.
			next = (rate - 1) / 2
		}
		rate = next
	}
	return 0, fmt.Errorf("IRR did not converge within %d iterations", constants.IRRMaxIterations)
}

func npvWithDerivative(cashflows []float64, rate float64) (float64, float64) {
	var npv, derivative float64
	for i, cf := range cashflows {
		t := float64(i)
		npv += cf / math.Pow(1+rate, t)
		if i > 0 {
			derivative -= t * cf / math.Pow(1+rate, t+1)
		}
	}
	return npv, derivative
}

// MOIC returns the multiple on invested capital: total distributions over the
// invested amount. Invested must be positive.
func MOIC(invested float64, distributions []float64) (float64, error) {
	if invested <= 0 {
		return 0, &InvalidInputError{Field: "invested",
			Reason: fmt.Sprintf("must be positive, got %v", invested)}
	}
	var total float64
	for _, d := range distributions {
		total += d
	}
	return total / invested, nil
}
