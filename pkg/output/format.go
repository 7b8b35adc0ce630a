// Package output provides utilities for formatting and displaying projection
// results.
package output

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"underwrite/internal/advisor"
	"underwrite/internal/compare"
	"underwrite/internal/engine"
	"underwrite/pkg/format"
)

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(results []*engine.Result) {
	p := message.NewPrinter(language.English)
	for i, result := range results {
		fmt.Printf("--- Results for scenario %s ---\n", result.ScenarioName)
		fmt.Printf("Year | Revenue         | EBITDA          | Net Income      | Levered FCF     | Cash            | Debt            | DSCR  | Leverage\n")
		fmt.Printf("____ | _______________ | _______________ | _______________ | _______________ | _______________ | _______________ | _____ | ________\n")
		for _, row := range result.Rows {
			// The grouped printer would also group the year digits.
			year := fmt.Sprintf("%d", row.Year)
			_, _ = p.Printf("%s | $%.2f | $%.2f | $%.2f | $%.2f | $%.2f | $%.2f | %s | %s\n",
				year, row.Revenue, row.EBITDA, row.NetIncome, row.LeveredFCF,
				row.EndingCash, row.EndingDebt, row.DSCR, row.NetLeverage)
		}

		val := result.Valuation
		fmt.Printf("\nValuation (%s):\n", val.Method)
		fmt.Printf("  Enterprise value   %s\n", format.Currency(val.EnterpriseValue))
		fmt.Printf("  Equity value       %s\n", format.Currency(val.EquityValue))
		fmt.Printf("  Terminal value     %s (present value %s)\n",
			format.Currency(val.TerminalValue), format.Currency(val.PVOfTerminalValue))
		if val.Multiples.EVToEBITDA != nil {
			fmt.Printf("  EV/EBITDA          %s\n", format.Multiple(*val.Multiples.EVToEBITDA))
		}
		if val.Multiples.PricePerShare != nil {
			fmt.Printf("  Price per share    %s\n", format.Currency(*val.Multiples.PricePerShare))
		}

		fmt.Printf("\nReturns:\n")
		if result.Returns.MOIC != nil {
			fmt.Printf("  MOIC               %s\n", format.Multiple(*result.Returns.MOIC))
		} else {
			fmt.Printf("  MOIC               n/a (no equity contribution)\n")
		}
		if result.Returns.IRR != nil {
			fmt.Printf("  IRR                %s\n", format.Percent(*result.Returns.IRR))
		} else {
			fmt.Printf("  IRR                n/a (no equity contribution)\n")
		}

		credit := result.Credit
		fmt.Printf("\nCredit:\n")
		if credit.DSCR.Min != nil && credit.DSCR.Avg != nil {
			fmt.Printf("  DSCR min/avg       %.2f / %.2f\n", *credit.DSCR.Min, *credit.DSCR.Avg)
		}
		if credit.NetLeverage.Max != nil {
			fmt.Printf("  Peak net leverage  %s\n", format.Multiple(*credit.NetLeverage.Max))
		}
		if credit.BreachCount > 0 {
			fmt.Printf("  Covenant breaches  %d (%s)\n", credit.BreachCount, joinYears(credit.BreachYears))
		} else {
			fmt.Printf("  Covenant breaches  none\n")
		}

		if len(result.Warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, warning := range result.Warnings {
				fmt.Printf("  - %s\n", warning)
			}
		}

		if i < len(results)-1 {
			fmt.Printf("\n")
		}
	}
}

// CsvString renders the projection in comma-separated value format, one row
// per scenario year. Export consumers only need the row shapes, so the
// valuation summary stays in the pretty renderer.
func CsvString(results []*engine.Result) string {
	var b strings.Builder
	b.WriteString(`"scenario","year","revenue","cogs","grossProfit","opex","ebitda","depreciation","ebit","interest","principal","debtService","tax","netIncome","capex","changeInWC","unleveredFCF","leveredFCF","dividends","endingCash","endingDebt","netDebt","dscr","icr","netLeverage","breach"`)
	b.WriteString("\n")
	for _, result := range results {
		for _, row := range result.Rows {
			fmt.Fprintf(&b, `"%s","%d"`, result.ScenarioName, row.Year)
			for _, amount := range []float64{
				row.Revenue, row.COGS, row.GrossProfit, row.Opex, row.EBITDA,
				row.Depreciation, row.EBIT, row.Interest, row.Principal,
				row.DebtService, row.Tax, row.NetIncome, row.Capex,
				row.ChangeInWC, row.UnleveredFCF, row.LeveredFCF, row.Dividends,
				row.EndingCash, row.EndingDebt, row.NetDebt,
			} {
				fmt.Fprintf(&b, `,"%.2f"`, amount)
			}
			fmt.Fprintf(&b, `,"%s","%s","%s","%t"`, row.DSCR, row.ICR, row.NetLeverage, row.Breaches.Any())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// CsvFormat outputs the CSV rendering to stdout.
func CsvFormat(results []*engine.Result) {
	fmt.Print(CsvString(results))
}

// PrettyAdvice outputs the capital structure assessment.
func PrettyAdvice(report *advisor.Report) {
	fmt.Printf("--- Capital structure assessment (%s benchmarks) ---\n", report.Industry)
	fmt.Printf("%s\n", report.Assessment)
	fmt.Printf("Current debt %s | target debt %s at %.2fx DSCR\n",
		format.Currency(report.CurrentDebt), format.Currency(report.TargetDebt), report.TargetDSCR)

	if len(report.Issues) > 0 {
		fmt.Printf("\nIssues:\n")
		for _, issue := range report.Issues {
			fmt.Printf("  [%s] %s\n", strings.ToUpper(string(issue.Severity)), issue.Message)
		}
	}

	if len(report.Plan) > 0 {
		fmt.Printf("\nTransition plan:\n")
		for _, phase := range report.Plan {
			fmt.Printf("  %d. %s (%s)\n", phase.Order, phase.Title, phase.Timeline)
			fmt.Printf("     %s\n", phase.Description)
			if phase.EstimatedCost != "" {
				fmt.Printf("     Estimated cost: %s\n", phase.EstimatedCost)
			}
		}
	}
}

// PrettyAudit outputs the valuation audit, expanding the divergent checks
// when agreement fails.
func PrettyAudit(report *compare.Report) {
	fmt.Printf("--- Valuation audit ---\n")
	fmt.Printf("%s\n", report.Describe())
	if report.Agreement {
		return
	}
	for _, check := range report.Checks {
		if check.Within {
			continue
		}
		if check.Year != 0 {
			fmt.Printf("  %s year %d: engine %.6f, audit %.6f, delta %.6f\n",
				check.Name, check.Year, check.Engine, check.Audit, check.Delta)
		} else {
			fmt.Printf("  %s: engine %.6f, audit %.6f, delta %.6f\n",
				check.Name, check.Engine, check.Audit, check.Delta)
		}
	}
}

// PrettySensitivity outputs the sensitivity grid with WACC down the rows and
// terminal growth across the columns.
func PrettySensitivity(grid *engine.SensitivityGrid) {
	p := message.NewPrinter(language.English)
	fmt.Printf("--- Enterprise value sensitivity ---\n")
	fmt.Printf("WACC \\ growth")
	for _, growth := range grid.Growths {
		fmt.Printf(" | %8s", format.Percent(growth))
	}
	fmt.Printf("\n")
	for i, wacc := range grid.WACCs {
		fmt.Printf("%13s", format.Percent(wacc))
		for j := range grid.Growths {
			cell := grid.Cells[i][j]
			if cell == nil {
				fmt.Printf(" | %8s", "n/a")
			} else {
				_, _ = p.Printf(" | %8.0f", *cell)
			}
		}
		fmt.Printf("\n")
	}
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, year := range years {
		parts[i] = fmt.Sprintf("%d", year)
	}
	return strings.Join(parts, ", ")
}
