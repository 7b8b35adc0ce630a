package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"underwrite/internal/model"
	"underwrite/pkg/covenant"
	"underwrite/pkg/valuation"
)

const tol = 0.01

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tol
}

// engineParams is a five-year levered manufacturing deal: a senior term loan
// amortizing level alongside a mezzanine bullet.
func engineParams() model.Params {
	return model.Params{
		DealName:       "Test Manufacturing Co",
		StartYear:      2025,
		Years:          5,
		BaseRevenue:    1000000,
		Growth:         0.05,
		COGSPct:        0.40,
		OpexPct:        0.30,
		CapexPct:       0.05,
		DAPctOfPPE:     0.10,
		WCPctOfRevenue: 0.10,
		TaxRate:        0.25,
		OpeningCash:    50000,
		OpeningPPE:     400000,
		WACC:           0.10,
		TerminalGrowth: 0.02,

		SharesOutstanding:  100000,
		EquityContribution: 200000,

		Tranches: []model.TrancheConfig{
			{Name: "Senior Term Loan", Amount: 300000, Rate: 0.06, TenorYears: 5},
			{Name: "Mezzanine Note", Amount: 200000, Rate: 0.10, TenorYears: 5, Amortization: "bullet"},
		},
	}
}

func TestBuildRows(t *testing.T) {
	builder := NewBuilder(nil)
	result, err := builder.Build(engineParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(result.Rows) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(result.Rows))
	}

	first := result.Rows[0]
	firstChecks := []struct {
		field string
		got   float64
		want  float64
	}{
		{"Revenue", first.Revenue, 1000000},
		{"EBITDA", first.EBITDA, 300000},
		{"Depreciation", first.Depreciation, 45000},
		{"EBIT", first.EBIT, 255000},
		{"Interest", first.Interest, 38000},
		{"Principal", first.Principal, 60000},
		{"PretaxIncome", first.PretaxIncome, 217000},
		{"Tax", first.Tax, 54250},
		{"NetIncome", first.NetIncome, 162750},
		{"ChangeInWC", first.ChangeInWC, 0},
		{"UnleveredFCF", first.UnleveredFCF, 186250},
		{"LeveredFCF", first.LeveredFCF, 97750},
		{"EndingCash", first.EndingCash, 147750},
		{"EndingDebt", first.EndingDebt, 440000},
		{"NetDebt", first.NetDebt, 292250},
	}
	for _, check := range firstChecks {
		if !almostEqual(check.got, check.want) {
			t.Errorf("Year 1 %s = %v, want %v", check.field, check.got, check.want)
		}
	}

	if first.Year != 2025 || result.Rows[4].Year != 2029 {
		t.Errorf("Expected calendar years 2025..2029, got %d..%d", first.Year, result.Rows[4].Year)
	}

	final := result.Rows[4]
	if !almostEqual(final.Principal, 260000) {
		t.Errorf("Final year principal = %v, want 260000", final.Principal)
	}
	if final.EndingDebt != 0 {
		t.Errorf("Final year ending debt = %v, want 0", final.EndingDebt)
	}
	if !almostEqual(final.LeveredFCF, -58498.60) {
		t.Errorf("Final year levered FCF = %v, want -58498.60", final.LeveredFCF)
	}
	if !almostEqual(final.NetDebt, -438521.87) {
		t.Errorf("Final year net debt = %v, want -438521.87", final.NetDebt)
	}
}

func TestBuildBalanceSheetCarries(t *testing.T) {
	builder := NewBuilder(nil)
	result, err := builder.Build(engineParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	first, second := result.Rows[0], result.Rows[1]
	carryChecks := []struct {
		field string
		got   float64
		want  float64
	}{
		{"Year 1 GrossPPE", first.GrossPPE, 450000},
		{"Year 1 AccumulatedDep", first.AccumulatedDep, 45000},
		{"Year 1 NetPPE", first.NetPPE, 405000},
		{"Year 1 RetainedEarnings", first.RetainedEarnings, 162750},
		{"Year 2 GrossPPE", second.GrossPPE, 502500},
		{"Year 2 AccumulatedDep", second.AccumulatedDep, 90750},
		{"Year 2 NetPPE", second.NetPPE, 411750},
	}
	for _, check := range carryChecks {
		if !almostEqual(check.got, check.want) {
			t.Errorf("%s = %v, want %v", check.field, check.got, check.want)
		}
	}

	prior := result.Rows[0]
	for _, row := range result.Rows[1:] {
		if !almostEqual(row.GrossPPE-row.AccumulatedDep, row.NetPPE) {
			t.Errorf("Year %d gross %.2f less accumulated %.2f != net %.2f",
				row.Year, row.GrossPPE, row.AccumulatedDep, row.NetPPE)
		}
		if row.GrossPPE <= prior.GrossPPE {
			t.Errorf("Year %d gross PPE %.2f did not grow from %.2f", row.Year, row.GrossPPE, prior.GrossPPE)
		}
		if !almostEqual(row.RetainedEarnings-prior.RetainedEarnings, row.NetIncome-row.Dividends) {
			t.Errorf("Year %d retained earnings roll %f, want %f",
				row.Year, row.RetainedEarnings-prior.RetainedEarnings, row.NetIncome-row.Dividends)
		}
		prior = row
	}
}

func TestBuildValuation(t *testing.T) {
	builder := NewBuilder(nil)
	result, err := builder.Build(engineParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	val := result.Valuation
	if val == nil {
		t.Fatal("Build() returned nil valuation")
	}
	if val.Method != valuation.TerminalPerpetuity {
		t.Errorf("Expected perpetuity method, got %v", val.Method)
	}

	checks := []struct {
		field string
		got   float64
		want  float64
	}{
		{"TerminalValue", val.TerminalValue, 2794817.83},
		{"PVOfCashFlows", val.PVOfCashFlows, 755152.33},
		{"PVOfTerminalValue", val.PVOfTerminalValue, 1735361.98},
		{"EnterpriseValue", val.EnterpriseValue, 2490514.32},
		{"EquityValue", val.EquityValue, 2040514.32},
	}
	for _, check := range checks {
		if !almostEqual(check.got, check.want) {
			t.Errorf("%s = %v, want %v", check.field, check.got, check.want)
		}
	}

	// Implied multiples quote forward against the first projected year.
	if val.Multiples.EVToEBITDA == nil || math.Abs(*val.Multiples.EVToEBITDA-8.301714) > 1e-4 {
		t.Errorf("EV/EBITDA = %v, want 8.301714", val.Multiples.EVToEBITDA)
	}
	if val.Multiples.PricePerShare == nil || math.Abs(*val.Multiples.PricePerShare-20.405143) > 1e-4 {
		t.Errorf("Price per share = %v, want 20.405143", val.Multiples.PricePerShare)
	}
}

func TestBuildMidYearConvention(t *testing.T) {
	params := engineParams()
	params.MidYearConvention = true

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !result.Valuation.MidYear {
		t.Errorf("Expected mid-year flag on the valuation")
	}
	// Every discount exponent shrinks by half a year, so the whole enterprise
	// value scales by sqrt(1+WACC).
	if !almostEqual(result.Valuation.EnterpriseValue, 2612073.45) {
		t.Errorf("Mid-year enterprise value = %v, want 2612073.45", result.Valuation.EnterpriseValue)
	}
}

func TestBuildExitMultiple(t *testing.T) {
	params := engineParams()
	params.TerminalMethod = "exit-multiple"
	params.ExitMultiple = 8

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Valuation.Method != valuation.TerminalExitMultiple {
		t.Errorf("Expected exit-multiple method, got %v", result.Valuation.Method)
	}
	if !almostEqual(result.Valuation.TerminalValue, 2917215.00) {
		t.Errorf("Terminal value = %v, want 8x final EBITDA = 2917215.00", result.Valuation.TerminalValue)
	}
	if !almostEqual(result.Valuation.EnterpriseValue, 2566513.33) {
		t.Errorf("Enterprise value = %v, want 2566513.33", result.Valuation.EnterpriseValue)
	}
}

func TestBuildEquityReturns(t *testing.T) {
	builder := NewBuilder(nil)
	result, err := builder.Build(engineParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if result.Returns.MOIC == nil {
		t.Fatal("Expected MOIC for a contributed deal")
	}
	if math.Abs(*result.Returns.MOIC-18.109308) > 1e-6 {
		t.Errorf("MOIC = %v, want 18.109308", *result.Returns.MOIC)
	}

	if result.Returns.IRR == nil {
		t.Fatal("Expected IRR for a contributed deal")
	}
	if math.Abs(*result.Returns.IRR-0.990482439) > 1e-6 {
		t.Errorf("IRR = %v, want 0.990482439", *result.Returns.IRR)
	}
}

func TestBuildNoEquityContribution(t *testing.T) {
	params := engineParams()
	params.EquityContribution = 0

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Returns.MOIC != nil {
		t.Errorf("Expected nil MOIC without an equity contribution, got %v", *result.Returns.MOIC)
	}
	if result.Returns.IRR != nil {
		t.Errorf("Expected nil IRR without an equity contribution, got %v", *result.Returns.IRR)
	}
}

func TestBuildTerminalSpreadFailsBeforeRows(t *testing.T) {
	params := engineParams()
	params.WACC = 0.04
	params.TerminalGrowth = 0.06

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if result != nil {
		t.Errorf("Expected no result when the terminal spread is invalid")
	}
	var terminalErr *valuation.TerminalValueError
	if !errors.As(err, &terminalErr) {
		t.Fatalf("Build() error = %v, want TerminalValueError", err)
	}
}

func TestBuildUnlevered(t *testing.T) {
	params := engineParams()
	params.Tranches = nil
	params.EquityContribution = 0

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, row := range result.Rows {
		if row.Interest != 0 || row.Principal != 0 {
			t.Errorf("Year %d has debt service in an unlevered model", row.Year)
		}
		if row.DSCR.IsCovered() {
			t.Errorf("Year %d DSCR should not apply without debt service", row.Year)
		}
		// Without leverage the levered and unlevered flows coincide.
		if math.Abs(row.LeveredFCF-row.UnleveredFCF) > 1e-6 {
			t.Errorf("Year %d levered FCF %v != unlevered FCF %v", row.Year, row.LeveredFCF, row.UnleveredFCF)
		}
	}

	if result.Credit.DSCR.CoveredYears != 0 {
		t.Errorf("Expected no covered DSCR years, got %d", result.Credit.DSCR.CoveredYears)
	}

	// The equity bridge adds back the cash position when there is no debt.
	bridge := result.Valuation.EnterpriseValue + 50000
	if !almostEqual(result.Valuation.EquityValue, bridge) {
		t.Errorf("Equity value = %v, want %v", result.Valuation.EquityValue, bridge)
	}
}

func TestBuildCovenantBreaches(t *testing.T) {
	params := engineParams()
	params.Covenants = covenant.Thresholds{MinDSCR: 1.30}

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// The balloon-heavy final year carries DSCR 1.29 against a 1.30 floor.
	if result.Credit.BreachCount != 1 {
		t.Fatalf("Expected 1 breach, got %d", result.Credit.BreachCount)
	}
	if len(result.Credit.BreachYears) != 1 || result.Credit.BreachYears[0] != 2029 {
		t.Errorf("Expected breach in 2029, got %v", result.Credit.BreachYears)
	}
	if !result.Rows[4].Breaches.DSCR {
		t.Errorf("Expected the final row to carry the DSCR breach")
	}
	if result.Rows[0].Breaches.Any() {
		t.Errorf("Expected no breach in year one")
	}

	if result.Credit.DSCR.Min == nil || math.Abs(*result.Credit.DSCR.Min-1.285796) > 1e-4 {
		t.Errorf("DSCR min = %v, want 1.285796", result.Credit.DSCR.Min)
	}
	if result.Credit.DSCR.CoveredYears != 5 {
		t.Errorf("Expected 5 covered DSCR years, got %d", result.Credit.DSCR.CoveredYears)
	}
}

func TestBuildDividends(t *testing.T) {
	params := engineParams()
	retention := 0.5
	params.CashRetentionPct = &retention

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	first := result.Rows[0]
	if !almostEqual(first.Dividends, 81375) {
		t.Errorf("Year 1 dividends = %v, want 81375", first.Dividends)
	}
	if !almostEqual(first.EndingCash, 66375) {
		t.Errorf("Year 1 ending cash = %v, want 66375", first.EndingCash)
	}
	if !almostEqual(first.FinancingCF, -60000-81375) {
		t.Errorf("Year 1 financing cash flow = %v, want -141375", first.FinancingCF)
	}
}

func TestBuildNonFinite(t *testing.T) {
	params := engineParams()
	params.Growth = 1e150

	builder := NewBuilder(nil)
	_, err := builder.Build(params)
	var nonFinite *NonFiniteError
	if !errors.As(err, &nonFinite) {
		t.Fatalf("Build() error = %v, want NonFiniteError", err)
	}
	if nonFinite.Field != "revenue" {
		t.Errorf("Expected the revenue overflow to be reported, got %s", nonFinite.Field)
	}
}

func TestBuildWarningsPropagate(t *testing.T) {
	params := engineParams()
	params.OpeningDebt = 100000
	params.InterestRate = 0.06
	params.DebtTenorYears = 5

	builder := NewBuilder(nil)
	result, err := builder.Build(params)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "double counting") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the tranche precedence warning to surface, got %v", result.Warnings)
	}

	// The legacy fields must not have inflated the debt stack.
	if result.Debt.TotalPrincipal() != 500000 {
		t.Errorf("Total principal = %v, want 500000", result.Debt.TotalPrincipal())
	}
}
