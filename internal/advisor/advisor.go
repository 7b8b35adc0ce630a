// Package advisor classifies a deal's capital structure against per-industry
// benchmarks and proposes a phased path to a sustainable debt level.
package advisor

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"underwrite/internal/engine"
	"underwrite/internal/model"
	"underwrite/pkg/amort"
	"underwrite/pkg/format"
)

// Severity ranks a structural issue. Critical issues indicate the structure
// fails as modeled, high issues indicate it sits outside lending norms,
// medium issues are watch items.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
}

// Benchmark holds the lending norms the advisor classifies against.
type Benchmark struct {
	Industry       string  `json:"industry"`
	MaxNetLeverage float64 `json:"maxNetLeverage"`
	MinDSCR        float64 `json:"minDSCR"`
	MinICR         float64 `json:"minICR"`
}

// benchmarks are rough mid-market senior lending norms by industry.
var benchmarks = map[string]Benchmark{
	"manufacturing": {Industry: "manufacturing", MaxNetLeverage: 3.5, MinDSCR: 1.25, MinICR: 2.0},
	"technology":    {Industry: "technology", MaxNetLeverage: 2.5, MinDSCR: 1.50, MinICR: 3.0},
	"retail":        {Industry: "retail", MaxNetLeverage: 3.0, MinDSCR: 1.30, MinICR: 2.5},
	"healthcare":    {Industry: "healthcare", MaxNetLeverage: 4.0, MinDSCR: 1.20, MinICR: 2.0},
	"services":      {Industry: "services", MaxNetLeverage: 3.0, MinDSCR: 1.35, MinICR: 2.5},
}

// defaultBenchmark applies when the model names no industry or an unknown
// one.
var defaultBenchmark = Benchmark{Industry: "general", MaxNetLeverage: 3.0, MinDSCR: 1.30, MinICR: 2.5}

// Assumed refinancing terms when the deal carries no debt to infer them
// from.
const (
	assumedBlendedRate = 0.08
	assumedTenorYears  = 7
)

// BenchmarkFor resolves the benchmark for an industry, falling back to the
// general table.
func BenchmarkFor(industry string) Benchmark {
	if benchmark, ok := benchmarks[strings.ToLower(strings.TrimSpace(industry))]; ok {
		return benchmark
	}
	return defaultBenchmark
}

// Issue is one structural finding.
type Issue struct {
	Severity  Severity `json:"severity"`
	Metric    string   `json:"metric"`
	Message   string   `json:"message"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
}

// Phase is one step of the transition plan.
type Phase struct {
	Order         int    `json:"order"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Timeline      string `json:"timeline"`
	EstimatedCost string `json:"estimatedCost,omitempty"`
}

// Report is the advisor's full assessment of one projection.
type Report struct {
	Industry    string    `json:"industry"`
	Benchmark   Benchmark `json:"benchmark"`
	Issues      []Issue   `json:"issues"`
	CurrentDebt float64   `json:"currentDebt"`
	TargetDebt  float64   `json:"targetDebt"`
	ExcessDebt  float64   `json:"excessDebt"`
	Capacity    float64   `json:"capacity"`
	TargetDSCR  float64   `json:"targetDSCR"`
	Plan        []Phase   `json:"plan,omitempty"`
	Assessment  string    `json:"assessment"`
}

// Advisor assesses capital structures.
type Advisor struct {
	logger *zap.Logger
}

// NewAdvisor creates an Advisor with the provided logger. A nil logger falls
// back to a no-op logger.
func NewAdvisor(logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{logger: logger}
}

// Assess classifies the projection's credit profile against the industry
// benchmark, sizes the sustainable debt level, and lays out the transition
// plan. The target DSCR never sits below the model's own covenant floor.
func (a *Advisor) Assess(result *engine.Result, params model.Params) (*Report, error) {
	if result == nil || len(result.Rows) == 0 {
		return nil, fmt.Errorf("no projection to assess")
	}

	benchmark := BenchmarkFor(params.Industry)
	report := &Report{
		Industry:  benchmark.Industry,
		Benchmark: benchmark,
	}

	report.TargetDSCR = benchmark.MinDSCR
	if params.Covenants.MinDSCR > report.TargetDSCR {
		report.TargetDSCR = params.Covenants.MinDSCR
	}

	report.CurrentDebt = result.Debt.TotalPrincipal()
	report.TargetDebt = a.targetDebt(result, report.TargetDSCR)
	if report.CurrentDebt > report.TargetDebt {
		report.ExcessDebt = report.CurrentDebt - report.TargetDebt
	} else {
		report.Capacity = report.TargetDebt - report.CurrentDebt
	}

	report.Issues = a.classify(result, benchmark)
	sort.SliceStable(report.Issues, func(i, j int) bool {
		return severityRank[report.Issues[i].Severity] < severityRank[report.Issues[j].Severity]
	})

	report.Plan = a.plan(result, report)
	report.Assessment = a.assessment(report)

	a.logger.Info("capital structure assessed",
		zap.String("op", "advisor.Assess"),
		zap.String("Industry", report.Industry),
		zap.Int("Issues", len(report.Issues)),
		zap.Float64("CurrentDebt", report.CurrentDebt),
		zap.Float64("TargetDebt", report.TargetDebt),
		zap.Float64("TargetDSCR", report.TargetDSCR),
	)

	return report, nil
}

// targetDebt sizes the debt level that restores the target DSCR. Annual debt
// service on amount D approximates D*(rate + 1/tenor) for a level structure,
// so D = avgEBITDA / (targetDSCR * (rate + 1/tenor)).
func (a *Advisor) targetDebt(result *engine.Result, targetDSCR float64) float64 {
	var totalEBITDA float64
	for _, row := range result.Rows {
		totalEBITDA += row.EBITDA
	}
	avgEBITDA := totalEBITDA / float64(len(result.Rows))
	if avgEBITDA <= 0 {
		return 0
	}

	rate := assumedBlendedRate
	tenor := assumedTenorYears
	if len(result.Debt.Tranches) > 0 {
		rate = result.Debt.BlendedRate()
		tenor = 0
		for _, schedule := range result.Debt.Tranches {
			if schedule.Tranche.TenorYears > tenor {
				tenor = schedule.Tranche.TenorYears
			}
		}
	}

	serviceFactor := rate + 1/float64(tenor)
	if serviceFactor <= 0 {
		return 0
	}
	return avgEBITDA / (targetDSCR * serviceFactor)
}

// classify walks the rule table against the projection's credit statistics.
func (a *Advisor) classify(result *engine.Result, benchmark Benchmark) []Issue {
	var issues []Issue
	credit := result.Credit

	if credit.BreachCount > 0 {
		issues = append(issues, Issue{
			Severity:  SeverityCritical,
			Metric:    "covenants",
			Message:   fmt.Sprintf("covenant breaches in %d of %d years (%s)", credit.BreachCount, len(result.Rows), formatYears(credit.BreachYears)),
			Value:     float64(credit.BreachCount),
			Threshold: 0,
		})
	}

	if credit.DSCR.Min != nil {
		minDSCR := *credit.DSCR.Min
		if minDSCR < 1.0 {
			issues = append(issues, Issue{
				Severity:  SeverityCritical,
				Metric:    "dscr",
				Message:   fmt.Sprintf("minimum DSCR of %.2f means EBITDA cannot cover scheduled debt service", minDSCR),
				Value:     minDSCR,
				Threshold: 1.0,
			})
		} else if minDSCR < benchmark.MinDSCR {
			issues = append(issues, Issue{
				Severity:  SeverityHigh,
				Metric:    "dscr",
				Message:   fmt.Sprintf("minimum DSCR of %.2f sits below the %s benchmark of %.2f", minDSCR, benchmark.Industry, benchmark.MinDSCR),
				Value:     minDSCR,
				Threshold: benchmark.MinDSCR,
			})
		}
	}

	if credit.NetLeverage.Max != nil && *credit.NetLeverage.Max > benchmark.MaxNetLeverage {
		issues = append(issues, Issue{
			Severity:  SeverityHigh,
			Metric:    "leverage",
			Message:   fmt.Sprintf("peak net leverage of %.1fx exceeds the %s benchmark of %.1fx", *credit.NetLeverage.Max, benchmark.Industry, benchmark.MaxNetLeverage),
			Value:     *credit.NetLeverage.Max,
			Threshold: benchmark.MaxNetLeverage,
		})
	}

	for _, row := range result.Rows {
		if row.EndingCash < 0 {
			issues = append(issues, Issue{
				Severity:  SeverityHigh,
				Metric:    "liquidity",
				Message:   fmt.Sprintf("cash balance turns negative in %d (%s); the structure needs a revolver or fresh equity", row.Year, format.Currency(row.EndingCash)),
				Value:     row.EndingCash,
				Threshold: 0,
			})
			break
		}
	}

	if credit.ICR.Min != nil && *credit.ICR.Min < benchmark.MinICR {
		issues = append(issues, Issue{
			Severity:  SeverityMedium,
			Metric:    "icr",
			Message:   fmt.Sprintf("minimum interest coverage of %.2f sits below the %s benchmark of %.2f", *credit.ICR.Min, benchmark.Industry, benchmark.MinICR),
			Value:     *credit.ICR.Min,
			Threshold: benchmark.MinICR,
		})
	}

	if final := result.Rows[len(result.Rows)-1]; final.EndingDebt > 0 {
		issues = append(issues, Issue{
			Severity:  SeverityMedium,
			Metric:    "maturity",
			Message:   fmt.Sprintf("%s of debt remains outstanding at the end of the horizon and needs refinancing", format.Currency(final.EndingDebt)),
			Value:     final.EndingDebt,
			Threshold: 0,
		})
	}

	return issues
}

// plan lays out the transition steps. Deals inside every benchmark get no
// plan at all.
func (a *Advisor) plan(result *engine.Result, report *Report) []Phase {
	if len(report.Issues) == 0 {
		return nil
	}

	var phases []Phase
	order := 1

	if report.ExcessDebt > 0 {
		phases = append(phases, Phase{
			Order: order,
			Title: "Reduce total debt",
			Description: fmt.Sprintf("Pay down %s of principal to restore a %.2fx DSCR at the current blended rate",
				format.Currency(report.ExcessDebt), report.TargetDSCR),
			Timeline: "12-18 months",
		})
		order++
	}

	if expensive := highestRateTranche(result); expensive != nil && expensive.Tranche.Rate > assumedBlendedRate {
		phases = append(phases, Phase{
			Order: order,
			Title: fmt.Sprintf("Refinance %s", expensive.Tranche.Name),
			Description: fmt.Sprintf("Replace the %s facility at senior terms near %s",
				format.Percent(expensive.Tranche.Rate), format.Percent(assumedBlendedRate)),
			Timeline:      "6-12 months",
			EstimatedCost: format.Currency(0.02 * expensive.Tranche.Amount),
		})
		order++
	}

	phases = append(phases, Phase{
		Order:       order,
		Title:       "Reset covenant package",
		Description: "Renegotiate covenant levels against the revised structure and set quarterly monitoring",
		Timeline:    "next review cycle",
	})

	return phases
}

// assessment renders the one-line verdict.
func (a *Advisor) assessment(report *Report) string {
	if len(report.Issues) == 0 {
		return fmt.Sprintf("capital structure is within %s benchmarks; additional debt capacity of roughly %s",
			report.Industry, format.Currency(report.Capacity))
	}

	counts := make(map[Severity]int)
	for _, issue := range report.Issues {
		counts[issue.Severity]++
	}
	if counts[SeverityCritical] > 0 {
		return fmt.Sprintf("capital structure fails as modeled: %d critical and %d high severity issues; reduce debt toward %s",
			counts[SeverityCritical], counts[SeverityHigh], format.Currency(report.TargetDebt))
	}
	return fmt.Sprintf("capital structure is outside %s benchmarks: %d high and %d medium severity issues",
		report.Industry, counts[SeverityHigh], counts[SeverityMedium])
}

func highestRateTranche(result *engine.Result) *amort.Schedule {
	var expensive *amort.Schedule
	for _, schedule := range result.Debt.Tranches {
		if expensive == nil || schedule.Tranche.Rate > expensive.Tranche.Rate {
			expensive = schedule
		}
	}
	return expensive
}

func formatYears(years []int) string {
	parts := make([]string, len(years))
	for i, year := range years {
		parts[i] = fmt.Sprintf("%d", year)
	}
	return strings.Join(parts, ", ")
}
