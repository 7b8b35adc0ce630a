package valuation

// SensitivityMatrix recomputes enterprise value across WACC and terminal
// growth ranges. Rows follow waccs, columns follow growths. A pair where the
// WACC fails to exceed growth (or is not positive) has no defined perpetuity;
// its cell is nil, never an error and never a fabricated number.
func SensitivityMatrix(base Input, waccs, growths []float64) ([][]*float64, error) {
	// Surface series problems once up front instead of once per cell.
	if len(base.CashFlows) == 0 {
		return nil, &InvalidCashFlowError{Index: -1, Reason: "series must not be empty"}
	}

	matrix := make([][]*float64, len(waccs))
	for i, wacc := range waccs {
		row := make([]*float64, len(growths))
		for j, growth := range growths {
			if wacc <= 0 || wacc <= growth {
				continue
			}
			in := base
			in.WACC = wacc
			in.TerminalGrowth = growth
			in.Method = TerminalPerpetuity
			res, err := Calculate(in)
			if err != nil {
				return nil, err
			}
			ev := res.EnterpriseValue
			row[j] = &ev
		}
		matrix[i] = row
	}
	return matrix, nil
}

// SymmetricRange returns count values centered on center, spaced by step.
func SymmetricRange(center float64, count int, step float64) []float64 {
	if count < 1 {
		return nil
	}
	values := make([]float64, count)
	start := center - step*float64(count-1)/2
	for i := range values {
		values[i] = start + step*float64(i)
	}
	return values
}
