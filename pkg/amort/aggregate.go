package amort

import (
	"fmt"

	"go.uber.org/zap"
)

// YearTotals is the combined debt service across all tranches for one year.
type YearTotals struct {
	Year          int     `json:"year"`
	Principal     float64 `json:"principal"`
	Interest      float64 `json:"interest"`
	TotalPayment  float64 `json:"totalPayment"`
	EndingBalance float64 `json:"endingBalance"`
}

// AggregateSchedule is the capital structure's combined annual debt service
// plus the per-tranche schedules it was built from.
type AggregateSchedule struct {
	Years    []YearTotals `json:"years"`
	Tranches []*Schedule  `json:"tranches"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Aggregate schedules every tranche independently and sums the per-year debt
// service. Each tranche contributes exactly once; callers own de-duplication
// of their tranche list.
func (g *ScheduleGenerator) Aggregate(tranches []Tranche, years int) (*AggregateSchedule, error) {
	agg := &AggregateSchedule{Years: make([]YearTotals, years)}
	for i := range agg.Years {
		agg.Years[i].Year = i + 1
	}

	for _, t := range tranches {
		s, err := g.Generate(t, years)
		if err != nil {
			return nil, err
		}
		agg.Tranches = append(agg.Tranches, s)
		agg.Warnings = append(agg.Warnings, s.Warnings...)
		for i, e := range s.Entries {
			agg.Years[i].Principal += e.Principal
			agg.Years[i].Interest += e.Interest
			agg.Years[i].TotalPayment += e.TotalPayment
			agg.Years[i].EndingBalance += e.EndingBalance
		}
	}

	g.logger.Debug(fmt.Sprintf("aggregated %d tranches over %d years", len(tranches), years),
		zap.String("op", "amort.Aggregate"),
		zap.Float64("totalPrincipal", agg.TotalPrincipal()),
	)

	return agg, nil
}

// TotalPrincipal returns the combined opening balance across all tranches.
func (a *AggregateSchedule) TotalPrincipal() float64 {
	var total float64
	for _, s := range a.Tranches {
		total += s.Tranche.Amount
	}
	return total
}

// BlendedRate returns the amount-weighted average quoted rate across
// tranches, or zero for an unlevered structure.
func (a *AggregateSchedule) BlendedRate() float64 {
	var total, weighted float64
	for _, s := range a.Tranches {
		total += s.Tranche.Amount
		weighted += s.Tranche.Amount * s.Tranche.Rate
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
