// Package engine builds multi-year financial projections and derives the
// valuation, credit, and equity return measures from them.
package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"underwrite/internal/model"
	"underwrite/pkg/amort"
	"underwrite/pkg/constants"
	"underwrite/pkg/covenant"
	"underwrite/pkg/mathutil"
	"underwrite/pkg/valuation"
)

// Row is one projection year. Flow amounts are period totals, balances are
// year-end.
type Row struct {
	Year             int               `json:"year"`
	Revenue          float64           `json:"revenue"`
	COGS             float64           `json:"cogs"`
	GrossProfit      float64           `json:"grossProfit"`
	Opex             float64           `json:"opex"`
	EBITDA           float64           `json:"ebitda"`
	Depreciation     float64           `json:"depreciation"`
	EBIT             float64           `json:"ebit"`
	Interest         float64           `json:"interest"`
	Principal        float64           `json:"principal"`
	DebtService      float64           `json:"debtService"`
	PretaxIncome     float64           `json:"pretaxIncome"`
	Tax              float64           `json:"tax"`
	NetIncome        float64           `json:"netIncome"`
	Capex            float64           `json:"capex"`
	GrossPPE         float64           `json:"grossPPE"`
	AccumulatedDep   float64           `json:"accumulatedDepreciation"`
	NetPPE           float64           `json:"netPPE"`
	WorkingCapital   float64           `json:"workingCapital"`
	ChangeInWC       float64           `json:"changeInWC"`
	UnleveredFCF     float64           `json:"unleveredFCF"`
	LeveredFCF       float64           `json:"leveredFCF"`
	Dividends        float64           `json:"dividends"`
	OperatingCF      float64           `json:"operatingCashFlow"`
	InvestingCF      float64           `json:"investingCashFlow"`
	FinancingCF      float64           `json:"financingCashFlow"`
	EndingCash       float64           `json:"endingCash"`
	EndingDebt       float64           `json:"endingDebt"`
	NetDebt          float64           `json:"netDebt"`
	RetainedEarnings float64           `json:"retainedEarnings"`
	DSCR             covenant.Ratio    `json:"dscr"`
	ICR              covenant.Ratio    `json:"icr"`
	NetLeverage      covenant.Ratio    `json:"netLeverage"`
	FixedCharge      covenant.Ratio    `json:"fixedChargeCoverage"`
	Breaches         covenant.Breaches `json:"breaches"`
}

// Returns holds the sponsor's return measures. Both are nil when the model
// carries no equity contribution to measure against.
type Returns struct {
	MOIC *float64 `json:"moic"`
	IRR  *float64 `json:"irr"`
}

// Result is one complete projection run.
type Result struct {
	DealName     string                   `json:"dealName,omitempty"`
	ScenarioName string                   `json:"scenarioName,omitempty"`
	Rows         []Row                    `json:"rows"`
	Debt         *amort.AggregateSchedule `json:"debt,omitempty"`
	Valuation    *valuation.Result        `json:"valuation"`
	Returns      Returns                  `json:"returns"`
	Credit       covenant.Stats           `json:"credit"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

// NonFiniteError reports a projection value that left the real line, which
// points at a pathological parameter combination rather than a modeling
// outcome worth reporting.
type NonFiniteError struct {
	Year  int
	Field string
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("projection produced a non-finite %s in year %d", e.Field, e.Year)
}

// Builder computes projections.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a Builder with the provided logger. A nil logger falls
// back to a no-op logger.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Build runs the full projection for one parameter set: debt normalization
// and scheduling, the year-by-year operating build, the embedded DCF, equity
// returns, and covenant statistics. Parameter validation runs first so a bad
// model fails before any rows are produced.
func (b *Builder) Build(params model.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	result := &Result{DealName: params.DealName}
	result.Warnings = append(result.Warnings, params.Lints()...)

	debt, err := params.NormalizeDebt(b.logger)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, debt.Warnings...)

	generator := amort.NewScheduleGenerator(b.logger)
	if params.Lenient {
		generator = amort.NewLenientScheduleGenerator(b.logger)
	}
	schedule, err := generator.Aggregate(debt.Tranches, params.Years)
	if err != nil {
		return nil, err
	}
	result.Debt = schedule
	result.Warnings = append(result.Warnings, schedule.Warnings...)

	rows, err := b.buildRows(params, schedule)
	if err != nil {
		return nil, err
	}
	result.Rows = rows

	val, err := b.valueProjection(params, rows, debt.TotalPrincipal())
	if err != nil {
		return nil, err
	}
	result.Valuation = val

	returns, warnings := equityReturns(params, rows, val)
	result.Returns = returns
	result.Warnings = append(result.Warnings, warnings...)

	result.Credit = creditStats(rows)

	b.logger.Debug("projection complete",
		zap.String("op", "engine.Build"),
		zap.Int("Years", params.Years),
		zap.Float64("EnterpriseValue", val.EnterpriseValue),
		zap.Int("CovenantBreaches", result.Credit.BreachCount),
	)

	return result, nil
}

// buildRows runs the sequential year loop. Each year consumes the prior
// year's closing balances, so rows cannot be computed out of order.
func (b *Builder) buildRows(params model.Params, schedule *amort.AggregateSchedule) ([]Row, error) {
	retention := params.CashRetention()
	rows := make([]Row, 0, params.Years)

	// Opening PP&E enters the model at carrying value, so the gross and
	// accumulated columns both start from the modeled horizon only.
	priorPPE := params.OpeningPPE
	priorGrossPPE := params.OpeningPPE
	priorAccumDep := 0.0
	priorRetained := 0.0
	priorWC := params.WCPctOfRevenue * params.BaseRevenue
	priorCash := params.OpeningCash

	for y := 1; y <= params.Years; y++ {
		revenue := params.BaseRevenue * math.Pow(1+params.Growth, float64(y-1))
		cogs := params.COGSPct * revenue
		grossProfit := revenue - cogs
		opex := params.OpexPct * revenue
		ebitda := grossProfit - opex

		capex := params.CapexPct * revenue
		depreciation := params.DAPctOfPPE * (priorPPE + capex)
		grossPPE := priorGrossPPE + capex
		accumDep := priorAccumDep + depreciation
		netPPE := priorPPE + capex - depreciation
		ebit := ebitda - depreciation

		totals := schedule.Years[y-1]
		interest := totals.Interest
		principal := totals.Principal
		debtService := totals.TotalPayment

		pretax := ebit - interest
		tax := params.TaxRate * math.Max(pretax, 0)
		netIncome := pretax - tax

		workingCapital := params.WCPctOfRevenue * revenue
		changeInWC := workingCapital - priorWC

		unleveredFCF := ebit*(1-params.TaxRate) + depreciation - capex - changeInWC
		leveredFCF := netIncome + depreciation - capex - changeInWC - principal

		dividends := math.Max(netIncome, 0) * (1 - retention)
		retained := priorRetained + netIncome - dividends
		operatingCF := netIncome + depreciation - changeInWC
		investingCF := -capex
		financingCF := -principal - dividends

		endingCash := priorCash + operatingCF + investingCF + financingCF
		if mathutil.Round(endingCash) == 0 {
			endingCash = 0
		}
		endingDebt := totals.EndingBalance
		netDebt := endingDebt - endingCash
		if mathutil.Round(netDebt) == 0 {
			netDebt = 0
		}

		row := Row{
			Year:             params.StartYear + y - 1,
			Revenue:          revenue,
			COGS:             cogs,
			GrossProfit:      grossProfit,
			Opex:             opex,
			EBITDA:           ebitda,
			Depreciation:     depreciation,
			EBIT:             ebit,
			Interest:         interest,
			Principal:        principal,
			DebtService:      debtService,
			PretaxIncome:     pretax,
			Tax:              tax,
			NetIncome:        netIncome,
			Capex:            capex,
			GrossPPE:         grossPPE,
			AccumulatedDep:   accumDep,
			NetPPE:           netPPE,
			WorkingCapital:   workingCapital,
			ChangeInWC:       changeInWC,
			UnleveredFCF:     unleveredFCF,
			LeveredFCF:       leveredFCF,
			Dividends:        dividends,
			OperatingCF:      operatingCF,
			InvestingCF:      investingCF,
			FinancingCF:      financingCF,
			EndingCash:       endingCash,
			EndingDebt:       endingDebt,
			NetDebt:          netDebt,
			RetainedEarnings: retained,
		}

		row.DSCR = covenant.DSCR(ebitda, debtService)
		row.ICR = covenant.ICR(ebit, interest, debtService)
		row.NetLeverage = covenant.NetDebtToEBITDA(netDebt, ebitda)
		row.FixedCharge = covenant.FixedChargeCoverage(ebitda, capex, debtService)
		row.Breaches = params.Covenants.Evaluate(row.DSCR, row.NetLeverage, row.ICR)

		finiteChecks := []struct {
			field string
			value float64
		}{
			{"revenue", revenue},
			{"ebitda", ebitda},
			{"netIncome", netIncome},
			{"unleveredFCF", unleveredFCF},
			{"leveredFCF", leveredFCF},
			{"endingCash", endingCash},
			{"netDebt", netDebt},
		}
		for _, check := range finiteChecks {
			if !mathutil.IsFinite(check.value) {
				return nil, &NonFiniteError{Year: row.Year, Field: check.field}
			}
		}

		rows = append(rows, row)

		priorPPE = netPPE
		priorGrossPPE = grossPPE
		priorAccumDep = accumDep
		priorRetained = retained
		priorWC = workingCapital
		priorCash = endingCash
	}

	return rows, nil
}

// valueProjection runs the DCF over the unlevered free cash flows. Net debt
// enters the equity bridge at its opening face amount less the cash treated
// as available at valuation. Implied multiples are quoted forward, against
// the first projected year.
func (b *Builder) valueProjection(params model.Params, rows []Row, openingDebt float64) (*valuation.Result, error) {
	method, err := params.ResolveTerminalMethod()
	if err != nil {
		return nil, err
	}

	cashFlows := make([]float64, len(rows))
	for i, row := range rows {
		cashFlows[i] = row.UnleveredFCF
	}

	first := rows[0]
	final := rows[len(rows)-1]

	return valuation.Calculate(valuation.Input{
		CashFlows:         cashFlows,
		WACC:              params.WACC,
		TerminalGrowth:    params.TerminalGrowth,
		Method:            method,
		ExitMultiple:      params.ExitMultiple,
		TerminalEBITDA:    final.EBITDA,
		MidYear:           params.MidYearConvention,
		NetDebt:           openingDebt - params.ValuationCash(),
		Associates:        params.AssociatesValue,
		MinorityInterest:  params.MinorityInterest,
		SharesOutstanding: params.SharesOutstanding,
		Basis: valuation.MultiplesBasis{
			Revenue:   first.Revenue,
			EBITDA:    first.EBITDA,
			EBIT:      first.EBIT,
			NetIncome: first.NetIncome,
		},
	})
}

// equityReturns measures the sponsor's cash-on-cash outcome. The sponsor
// contributes at close, receives each year's levered free cash flow, and
// exits in the final year at the undiscounted terminal value net of the debt
// still outstanding.
func equityReturns(params model.Params, rows []Row, val *valuation.Result) (Returns, []string) {
	if params.EquityContribution <= 0 {
		return Returns{}, nil
	}

	finalIdx := len(rows) - 1
	exitProceeds := val.TerminalValue - rows[finalIdx].NetDebt

	flows := make([]float64, 0, len(rows)+1)
	flows = append(flows, -params.EquityContribution)
	for i, row := range rows {
		flow := row.LeveredFCF
		if i == finalIdx {
			flow += exitProceeds
		}
		flows = append(flows, flow)
	}

	var returns Returns
	var warnings []string

	if moic, err := valuation.MOIC(params.EquityContribution, flows[1:]); err == nil {
		returns.MOIC = &moic
	} else {
		warnings = append(warnings, fmt.Sprintf("could not compute MOIC: %s", err))
	}

	if irr, err := valuation.IRR(flows, constants.IRRDefaultGuess); err == nil {
		returns.IRR = &irr
	} else {
		warnings = append(warnings, fmt.Sprintf("could not compute IRR: %s", err))
	}

	return returns, warnings
}

// creditStats folds the per-year tagged ratios into horizon-wide covenant
// statistics. Breach evaluation already happened per row.
func creditStats(rows []Row) covenant.Stats {
	dscrs := make([]covenant.Ratio, len(rows))
	icrs := make([]covenant.Ratio, len(rows))
	leverages := make([]covenant.Ratio, len(rows))
	fixedCharges := make([]covenant.Ratio, len(rows))
	for i, row := range rows {
		dscrs[i] = row.DSCR
		icrs[i] = row.ICR
		leverages[i] = row.NetLeverage
		fixedCharges[i] = row.FixedCharge
	}

	stats := covenant.Stats{
		DSCR:        covenant.Summarize(dscrs),
		ICR:         covenant.Summarize(icrs),
		NetLeverage: covenant.Summarize(leverages),
		FixedCharge: covenant.Summarize(fixedCharges),
	}
	for _, row := range rows {
		if row.Breaches.Any() {
			stats.BreachCount++
			stats.BreachYears = append(stats.BreachYears, row.Year)
		}
	}

	return stats
}
