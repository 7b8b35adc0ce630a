// Package valuation implements discounted cash flow valuation, the
// enterprise-to-equity bridge, return metrics, and sensitivity analysis.
//
// This is the only place discounting, terminal values, and the equity bridge
// are computed. The projection engine calls into it rather than carrying a
// second copy of the math.
package valuation

import (
	"fmt"
	"math"

	"underwrite/pkg/mathutil"
)

// TerminalMethod selects how terminal value is computed. The method is always
// an explicit choice, never inferred from which inputs happen to be set.
type TerminalMethod string

const (
	// TerminalPerpetuity grows the final cash flow forever at the terminal
	// growth rate (Gordon growth).
	TerminalPerpetuity TerminalMethod = "perpetuity"

	// TerminalExitMultiple applies a multiple to terminal year EBITDA.
	TerminalExitMultiple TerminalMethod = "exit-multiple"
)

// Input drives one DCF valuation.
//
// CashFlows must be unlevered free cash flows (before financing); pairing
// the enterprise discounting below with levered flows double counts debt.
// NetDebt must already be debt minus cash as of the valuation date.
type Input struct {
	CashFlows         []float64      `json:"cashFlows"`
	WACC              float64        `json:"wacc"`
	TerminalGrowth    float64        `json:"terminalGrowth"`
	Method            TerminalMethod `json:"method,omitempty"`
	ExitMultiple      float64        `json:"exitMultiple,omitempty"`
	TerminalEBITDA    float64        `json:"terminalEBITDA,omitempty"`
	MidYear           bool           `json:"midYear,omitempty"`
	NetDebt           float64        `json:"netDebt"`
	Associates        float64        `json:"associates,omitempty"`
	MinorityInterest  float64        `json:"minorityInterest,omitempty"`
	Basis             MultiplesBasis `json:"basis,omitempty"`
	SharesOutstanding float64        `json:"sharesOutstanding,omitempty"`
}

// MultiplesBasis carries the first forecast year metrics that implied
// multiples are quoted against. Zero fields leave the multiple unset.
type MultiplesBasis struct {
	Revenue   float64 `json:"revenue,omitempty"`
	EBITDA    float64 `json:"ebitda,omitempty"`
	EBIT      float64 `json:"ebit,omitempty"`
	NetIncome float64 `json:"netIncome,omitempty"`
}

// YearBreakdown is the discounting detail for one forecast year.
type YearBreakdown struct {
	Year           int     `json:"year"`
	CashFlow       float64 `json:"cashFlow"`
	DiscountFactor float64 `json:"discountFactor"`
	PresentValue   float64 `json:"presentValue"`
}

// Multiples holds implied valuation multiples. A nil multiple means its basis
// metric was zero, negative, or not supplied.
type Multiples struct {
	EVToRevenue     *float64 `json:"evToRevenue"`
	EVToEBITDA      *float64 `json:"evToEBITDA"`
	EVToEBIT        *float64 `json:"evToEBIT"`
	PriceToEarnings *float64 `json:"priceToEarnings"`
	PricePerShare   *float64 `json:"pricePerShare"`
}

// Result is a completed DCF valuation.
type Result struct {
	EnterpriseValue   float64         `json:"enterpriseValue"`
	EquityValue       float64         `json:"equityValue"`
	TerminalValue     float64         `json:"terminalValue"`
	PVOfCashFlows     float64         `json:"pvOfProjectedFCFs"`
	PVOfTerminalValue float64         `json:"pvOfTerminalValue"`
	Years             []YearBreakdown `json:"years"`
	Multiples         Multiples       `json:"multiples"`
	Method            TerminalMethod  `json:"method"`
	MidYear           bool            `json:"midYear"`
}

// TerminalValueError reports a perpetuity that does not converge because the
// discount rate fails to exceed the growth rate.
type TerminalValueError struct {
	WACC   float64
	Growth float64
}

func (e *TerminalValueError) Error() string {
	return fmt.Sprintf("terminal value undefined: WACC %v must exceed terminal growth %v", e.WACC, e.Growth)
}

// InvalidCashFlowError reports a cash flow series that cannot be valued.
// Index is -1 when the series as a whole is at fault.
type InvalidCashFlowError struct {
	Index  int
	Value  float64
	Reason string
}

func (e *InvalidCashFlowError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid cash flow series: %s", e.Reason)
	}
	return fmt.Sprintf("invalid cash flow at index %d (%v): %s", e.Index, e.Value, e.Reason)
}

// InvalidInputError reports a valuation input outside its valid range.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid valuation input: %s: %s", e.Field, e.Reason)
}

// Calculate runs a full DCF valuation.
//
// Discounting is end-of-year, or shifted half a year earlier when MidYear is
// set; one convention applies to every flow including the terminal value.
func Calculate(in Input) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	method := in.Method
	if method == "" {
		method = TerminalPerpetuity
	}

	n := len(in.CashFlows)
	res := &Result{
		Years:   make([]YearBreakdown, n),
		Method:  method,
		MidYear: in.MidYear,
	}

	for i, cf := range in.CashFlows {
		exponent := float64(i + 1)
		if in.MidYear {
			exponent -= 0.5
		}
		factor := 1 / math.Pow(1+in.WACC, exponent)
		pv := cf * factor
		res.Years[i] = YearBreakdown{
			Year:           i + 1,
			CashFlow:       cf,
			DiscountFactor: factor,
			PresentValue:   pv,
		}
		res.PVOfCashFlows += pv
	}

	switch method {
	case TerminalPerpetuity:
		res.TerminalValue = in.CashFlows[n-1] * (1 + in.TerminalGrowth) / (in.WACC - in.TerminalGrowth)
	case TerminalExitMultiple:
		res.TerminalValue = in.TerminalEBITDA * in.ExitMultiple
	}

	terminalExponent := float64(n)
	if in.MidYear {
		terminalExponent -= 0.5
	}
	res.PVOfTerminalValue = res.TerminalValue / math.Pow(1+in.WACC, terminalExponent)

	res.EnterpriseValue = res.PVOfCashFlows + res.PVOfTerminalValue
	res.EquityValue = res.EnterpriseValue - in.NetDebt + in.Associates - in.MinorityInterest
	res.Multiples = impliedMultiples(res.EnterpriseValue, res.EquityValue, in)

	return res, nil
}

func validateInput(in Input) error {
	if len(in.CashFlows) == 0 {
		return &InvalidCashFlowError{Index: -1, Reason: "series must not be empty"}
	}
	for i, cf := range in.CashFlows {
		if !mathutil.IsFinite(cf) {
			return &InvalidCashFlowError{Index: i, Value: cf, Reason: "must be a finite number"}
		}
	}
	if !mathutil.IsFinite(in.WACC) || in.WACC <= 0 {
		return &InvalidInputError{Field: "wacc", Reason: fmt.Sprintf("must be a positive finite number, got %v", in.WACC)}
	}
	if !mathutil.AllFinite(in.TerminalGrowth, in.NetDebt, in.Associates, in.MinorityInterest) {
		return &InvalidInputError{Field: "bridge", Reason: "terminal growth and equity bridge inputs must be finite"}
	}

	switch in.Method {
	case "", TerminalPerpetuity:
		if in.WACC <= in.TerminalGrowth {
			return &TerminalValueError{WACC: in.WACC, Growth: in.TerminalGrowth}
		}
	case TerminalExitMultiple:
		if in.ExitMultiple <= 0 || !mathutil.IsFinite(in.ExitMultiple) {
			return &InvalidInputError{Field: "exitMultiple",
				Reason: fmt.Sprintf("must be a positive finite number, got %v", in.ExitMultiple)}
		}
		if !mathutil.IsFinite(in.TerminalEBITDA) {
			return &InvalidInputError{Field: "terminalEBITDA", Reason: "must be a finite number"}
		}
	default:
		return &InvalidInputError{Field: "method", Reason: fmt.Sprintf("unknown terminal method %q", in.Method)}
	}
	return nil
}

func impliedMultiples(ev, equity float64, in Input) Multiples {
	var m Multiples
	if in.Basis.Revenue > 0 {
		v := ev / in.Basis.Revenue
		m.EVToRevenue = &v
	}
	if in.Basis.EBITDA > 0 {
		v := ev / in.Basis.EBITDA
		m.EVToEBITDA = &v
	}
	if in.Basis.EBIT > 0 {
		v := ev / in.Basis.EBIT
		m.EVToEBIT = &v
	}
	if in.Basis.NetIncome > 0 {
		v := equity / in.Basis.NetIncome
		m.PriceToEarnings = &v
	}
	if in.SharesOutstanding > 0 {
		v := equity / in.SharesOutstanding
		m.PricePerShare = &v
	}
	return m
}
