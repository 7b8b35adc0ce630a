package covenant

// Thresholds holds the covenant levels a projection is tested against. A zero
// threshold means the covenant is not set and never breaches.
type Thresholds struct {
	MinDSCR        float64 `json:"minDSCR" yaml:"minDSCR"`
	MaxNetLeverage float64 `json:"maxNetLeverage" yaml:"maxNetLeverage"`
	MinICR         float64 `json:"minICR" yaml:"minICR"`
}

// Breaches flags which covenants a single year violates. Only Covered ratios
// can breach; Uncapped and NotApplicable years never do.
type Breaches struct {
	DSCR     bool `json:"dscr"`
	Leverage bool `json:"leverage"`
	ICR      bool `json:"icr"`
}

// Any reports whether at least one covenant is breached.
func (b Breaches) Any() bool {
	return b.DSCR || b.Leverage || b.ICR
}

// Evaluate tests one year's ratios against the thresholds.
func (t Thresholds) Evaluate(dscr, leverage, icr Ratio) Breaches {
	var b Breaches
	if v, ok := dscr.Float(); ok && t.MinDSCR > 0 && v < t.MinDSCR {
		b.DSCR = true
	}
	if v, ok := leverage.Float(); ok && t.MaxNetLeverage > 0 && v > t.MaxNetLeverage {
		b.Leverage = true
	}
	if v, ok := icr.Float(); ok && t.MinICR > 0 && v < t.MinICR {
		b.ICR = true
	}
	return b
}

// Aggregate folds the Covered values of one ratio across a projection.
// Min, Max, and Avg are nil when no year carried a value.
type Aggregate struct {
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	Avg          *float64 `json:"avg"`
	CoveredYears int      `json:"coveredYears"`
}

// Summarize computes the aggregate of a ratio series. Uncapped and
// NotApplicable years are excluded, not treated as extreme values.
func Summarize(series []Ratio) Aggregate {
	var agg Aggregate
	var sum float64
	for _, r := range series {
		v, ok := r.Float()
		if !ok {
			continue
		}
		if agg.CoveredYears == 0 {
			lo, hi := v, v
			agg.Min, agg.Max = &lo, &hi
		} else {
			if v < *agg.Min {
				*agg.Min = v
			}
			if v > *agg.Max {
				*agg.Max = v
			}
		}
		sum += v
		agg.CoveredYears++
	}
	if agg.CoveredYears > 0 {
		avg := sum / float64(agg.CoveredYears)
		agg.Avg = &avg
	}
	return agg
}

// Stats summarizes covenant performance across a whole projection.
type Stats struct {
	DSCR        Aggregate `json:"dscr"`
	ICR         Aggregate `json:"icr"`
	NetLeverage Aggregate `json:"netLeverage"`
	FixedCharge Aggregate `json:"fixedCharge"`
	BreachCount int       `json:"breachCount"`
	BreachYears []int     `json:"breachYears,omitempty"`
}
