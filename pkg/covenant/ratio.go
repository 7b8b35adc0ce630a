// Package covenant computes credit covenant ratios and summarizes them across
// a projection.
//
// Ratios are tagged values rather than bare floats. A debt-free year has no
// debt service coverage to compute; that is a NotApplicable ratio, not an
// infinity and not a sentinel like 999. Callers that want a number must ask
// whether one exists.
package covenant

import (
	"encoding/json"
	"fmt"

	"underwrite/pkg/mathutil"
)

// State tags how a covenant ratio should be read.
type State string

const (
	// Covered means a finite ratio value is available.
	Covered State = "covered"

	// Uncapped means coverage is unbounded, e.g. earnings with no interest
	// burden to cover.
	Uncapped State = "uncapped"

	// NotApplicable means the ratio is undefined for the year.
	NotApplicable State = "notApplicable"
)

// Ratio is a covenant ratio tagged with its applicability.
type Ratio struct {
	State  State
	Value  float64
	Reason string
}

// CoveredRatio wraps a computed ratio value.
func CoveredRatio(value float64) Ratio {
	return Ratio{State: Covered, Value: value}
}

// UncappedRatio marks coverage as unbounded for the given reason.
func UncappedRatio(reason string) Ratio {
	return Ratio{State: Uncapped, Reason: reason}
}

// NotApplicableRatio marks the ratio undefined for the given reason.
func NotApplicableRatio(reason string) Ratio {
	return Ratio{State: NotApplicable, Reason: reason}
}

// Float returns the ratio value and whether one exists. Only Covered ratios
// carry a value.
func (r Ratio) Float() (float64, bool) {
	return r.Value, r.State == Covered
}

// IsCovered reports whether the ratio carries a usable value.
func (r Ratio) IsCovered() bool {
	return r.State == Covered
}

// String renders the ratio for reports: a number, "Uncapped", or "N/A".
func (r Ratio) String() string {
	switch r.State {
	case Covered:
		return fmt.Sprintf("%.2f", r.Value)
	case Uncapped:
		return "Uncapped"
	default:
		return "N/A"
	}
}

type ratioJSON struct {
	State  State    `json:"state"`
	Value  *float64 `json:"value,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// MarshalJSON emits the value only for Covered ratios so a Covered zero
// survives the round trip.
func (r Ratio) MarshalJSON() ([]byte, error) {
	out := ratioJSON{State: r.State, Reason: r.Reason}
	if r.State == Covered {
		v := r.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a ratio emitted by MarshalJSON.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var in ratioJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.State = in.State
	r.Reason = in.Reason
	r.Value = 0
	if in.Value != nil {
		r.Value = *in.Value
	}
	return nil
}

// DSCR returns EBITDA over total debt service. Years without debt service
// have no coverage to measure.
func DSCR(ebitda, debtService float64) Ratio {
	if mathutil.IsZero(debtService) {
		return NotApplicableRatio("no debt service due")
	}
	return CoveredRatio(ebitda / debtService)
}

// ICR returns EBIT over interest expense. A year that pays principal but no
// interest has unbounded interest coverage; a year with no debt service at
// all has none to measure.
func ICR(ebit, interest, debtService float64) Ratio {
	if mathutil.IsZero(interest) {
		if mathutil.IsZero(debtService) {
			return NotApplicableRatio("no debt service due")
		}
		return UncappedRatio("no interest burden")
	}
	return CoveredRatio(ebit / interest)
}

// NetDebtToEBITDA returns net debt over EBITDA. A net cash position is
// Covered leverage of zero; positive net debt against non-positive EBITDA is
// undefined rather than negative.
func NetDebtToEBITDA(netDebt, ebitda float64) Ratio {
	if !mathutil.IsPositive(netDebt) {
		return CoveredRatio(0)
	}
	if !mathutil.IsPositive(ebitda) {
		return NotApplicableRatio("non-positive EBITDA with net debt outstanding")
	}
	return CoveredRatio(netDebt / ebitda)
}

// FixedChargeCoverage returns EBITDA less capex over total debt service.
func FixedChargeCoverage(ebitda, capex, debtService float64) Ratio {
	if mathutil.IsZero(debtService) {
		return NotApplicableRatio("no debt service due")
	}
	return CoveredRatio((ebitda - capex) / debtService)
}
