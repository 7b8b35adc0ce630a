package model

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"underwrite/pkg/valuation"
)

func TestLoadModel(t *testing.T) {
	tests := []struct {
		name      string
		modelPath string
		wantError bool
	}{
		{
			name:      "Non-existent model file",
			modelPath: "nonexistent.yaml",
			wantError: true,
		},
		{
			name:      "Shared test model",
			modelPath: "../../test/test_model.yaml",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := LoadModel(tt.modelPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadModel() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadModel() error = %v", err)
				return
			}
			if model == nil {
				t.Errorf("LoadModel() returned nil model")
			}
		})
	}
}

func TestLoadModelStructure(t *testing.T) {
	model, err := LoadModel("../../test/test_model.yaml")
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	if model.Params.DealName != "Test Manufacturing Co" {
		t.Errorf("Expected DealName = Test Manufacturing Co, got %v", model.Params.DealName)
	}
	if model.Params.StartYear != 2025 {
		t.Errorf("Expected StartYear = 2025, got %v", model.Params.StartYear)
	}
	if model.Params.Years != 5 {
		t.Errorf("Expected Years = 5, got %v", model.Params.Years)
	}
	if model.Params.BaseRevenue != 1000000 {
		t.Errorf("Expected BaseRevenue = 1000000, got %v", model.Params.BaseRevenue)
	}
	if model.Params.COGSPct != 0.40 {
		t.Errorf("Expected COGSPct = 0.40, got %v", model.Params.COGSPct)
	}
	if model.Params.Covenants.MinDSCR != 1.20 {
		t.Errorf("Expected MinDSCR = 1.20, got %v", model.Params.Covenants.MinDSCR)
	}

	if len(model.Params.Tranches) != 2 {
		t.Fatalf("Expected 2 tranches, got %d", len(model.Params.Tranches))
	}
	if model.Params.Tranches[0].Name != "Senior Term Loan" {
		t.Errorf("Expected first tranche Senior Term Loan, got %v", model.Params.Tranches[0].Name)
	}
	if model.Params.Tranches[1].Rate != 0.10 {
		t.Errorf("Expected mezzanine rate 0.10, got %v", model.Params.Tranches[1].Rate)
	}

	expectedScenarios := []string{"base case", "downside revenue", "rate shock", "shelved"}
	if len(model.Scenarios) != len(expectedScenarios) {
		t.Fatalf("Expected %d scenarios, got %d", len(expectedScenarios), len(model.Scenarios))
	}
	for i, expectedName := range expectedScenarios {
		if model.Scenarios[i].Name != expectedName {
			t.Errorf("Expected scenario name %s, got %s", expectedName, model.Scenarios[i].Name)
		}
	}
	if model.Scenarios[3].Active {
		t.Errorf("Expected scenario %s to be inactive", model.Scenarios[3].Name)
	}
	if got := len(model.ActiveScenarios()); got != 3 {
		t.Errorf("Expected 3 active scenarios, got %d", got)
	}

	if model.Logging.Level != "debug" {
		t.Errorf("Expected logging level debug, got %v", model.Logging.Level)
	}
	if model.Output.Format != "pretty" {
		t.Errorf("Expected output format pretty, got %v", model.Output.Format)
	}
}

func TestLoadModelFromReader(t *testing.T) {
	yamlData := `
params:
  years: 3
  baseRevenue: 500000
  growth: 0.04
  wacc: 0.12
  terminalGrowth: 0.02
  openingDebt: 100000
  interestRate: 0.07
  debtTenorYears: 4
`
	model, err := LoadModelFromReader(strings.NewReader(yamlData))
	if err != nil {
		t.Fatalf("LoadModelFromReader() error = %v", err)
	}
	if model.Params.Years != 3 {
		t.Errorf("Expected Years = 3, got %v", model.Params.Years)
	}
	if model.Params.OpeningDebt != 100000 {
		t.Errorf("Expected OpeningDebt = 100000, got %v", model.Params.OpeningDebt)
	}
	if model.Params.DebtTenorYears != 4 {
		t.Errorf("Expected DebtTenorYears = 4, got %v", model.Params.DebtTenorYears)
	}

	if _, err := LoadModelFromReader(strings.NewReader("params: [not a map")); err == nil {
		t.Errorf("LoadModelFromReader() expected error for malformed YAML")
	}
}

func TestApplyDefaults(t *testing.T) {
	model := &Model{
		Params: Params{
			Years:       5,
			BaseRevenue: 100000,
			OpeningCash: 25000,
			WACC:        0.10,
		},
	}
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	model.ApplyDefaults(now)

	if model.Params.StartYear != 2025 {
		t.Errorf("Expected defaulted StartYear = 2025, got %v", model.Params.StartYear)
	}
	if model.Params.CashRetentionPct == nil || *model.Params.CashRetentionPct != 1.0 {
		t.Errorf("Expected defaulted CashRetentionPct = 1.0, got %v", model.Params.CashRetentionPct)
	}
	if model.Params.CashAtValuation == nil || *model.Params.CashAtValuation != 25000 {
		t.Errorf("Expected defaulted CashAtValuation = 25000, got %v", model.Params.CashAtValuation)
	}

	explicit := 0.5
	model2 := &Model{Params: Params{StartYear: 2030, CashRetentionPct: &explicit}}
	model2.ApplyDefaults(now)
	if model2.Params.StartYear != 2030 {
		t.Errorf("Expected explicit StartYear preserved, got %v", model2.Params.StartYear)
	}
	if *model2.Params.CashRetentionPct != 0.5 {
		t.Errorf("Expected explicit CashRetentionPct preserved, got %v", *model2.Params.CashRetentionPct)
	}
}

func baseParams() Params {
	return Params{
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
		WACC:           0.10,
		TerminalGrowth: 0.02,
	}
}

func TestNormalizeDebtExplicitTranchesWin(t *testing.T) {
	params := baseParams()
	params.OpeningDebt = 100000
	params.RequestedLoanAmount = 50000
	params.Tranches = []TrancheConfig{
		{Name: "Senior", Amount: 300000, Rate: 0.06, TenorYears: 5},
		{Name: "Mezz", Amount: 200000, Rate: 0.10, TenorYears: 5, Amortization: "bullet"},
	}

	debt, err := params.NormalizeDebt(nil)
	if err != nil {
		t.Fatalf("NormalizeDebt() error = %v", err)
	}
	if len(debt.Tranches) != 2 {
		t.Fatalf("Expected 2 tranches, got %d", len(debt.Tranches))
	}
	if debt.TotalPrincipal() != 500000 {
		t.Errorf("Expected total principal 500000, got %v", debt.TotalPrincipal())
	}

	found := false
	for _, w := range debt.Warnings {
		if strings.Contains(w, "double counting") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a double-counting warning, got %v", debt.Warnings)
	}
}

func TestNormalizeDebtLegacySynthesis(t *testing.T) {
	params := baseParams()
	params.OpeningDebt = 100000
	params.RequestedLoanAmount = 400000
	params.InterestRate = 0.07
	params.DebtTenorYears = 6
	params.InterestOnlyYears = 1

	debt, err := params.NormalizeDebt(nil)
	if err != nil {
		t.Fatalf("NormalizeDebt() error = %v", err)
	}
	if len(debt.Tranches) != 2 {
		t.Fatalf("Expected 2 synthesized tranches, got %d", len(debt.Tranches))
	}
	if debt.Tranches[0].Name != ExistingDebtName || debt.Tranches[0].Amount != 100000 {
		t.Errorf("Unexpected first tranche %+v", debt.Tranches[0])
	}
	if debt.Tranches[1].Name != NewFacilityName || debt.Tranches[1].Amount != 400000 {
		t.Errorf("Unexpected second tranche %+v", debt.Tranches[1])
	}
	for _, tranche := range debt.Tranches {
		if tranche.Rate != 0.07 {
			t.Errorf("Expected inherited rate 0.07, got %v", tranche.Rate)
		}
		if tranche.TenorYears != 6 {
			t.Errorf("Expected inherited tenor 6, got %v", tranche.TenorYears)
		}
		if tranche.InterestOnlyYears != 1 {
			t.Errorf("Expected inherited interest-only period 1, got %v", tranche.InterestOnlyYears)
		}
	}
	if len(debt.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", debt.Warnings)
	}
}

func TestNormalizeDebtNoDebt(t *testing.T) {
	params := baseParams()
	debt, err := params.NormalizeDebt(nil)
	if err != nil {
		t.Fatalf("NormalizeDebt() error = %v", err)
	}
	if len(debt.Tranches) != 0 {
		t.Errorf("Expected no tranches for an unlevered model, got %d", len(debt.Tranches))
	}
	if debt.TotalPrincipal() != 0 {
		t.Errorf("Expected zero total principal, got %v", debt.TotalPrincipal())
	}
}

func TestNormalizeDebtMaturityYear(t *testing.T) {
	params := baseParams()
	params.Tranches = []TrancheConfig{
		{Name: "Senior", Amount: 300000, Rate: 0.06, MaturityYear: 2029},
	}

	debt, err := params.NormalizeDebt(nil)
	if err != nil {
		t.Fatalf("NormalizeDebt() error = %v", err)
	}
	if debt.Tranches[0].TenorYears != 5 {
		t.Errorf("Expected tenor 5 from maturity 2029, got %v", debt.Tranches[0].TenorYears)
	}

	params.Tranches[0].MaturityYear = 2024
	if _, err := params.NormalizeDebt(nil); err == nil {
		t.Errorf("NormalizeDebt() expected error for maturity before start year")
	}
}

func TestNormalizeDebtErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{
			name: "Tranche without tenor",
			mutate: func(p *Params) {
				p.Tranches = []TrancheConfig{{Name: "Senior", Amount: 100000, Rate: 0.06}}
			},
			field: "tenorYears",
		},
		{
			name: "Legacy debt without tenor",
			mutate: func(p *Params) {
				p.OpeningDebt = 100000
				p.InterestRate = 0.06
			},
			field: "debtTenorYears",
		},
		{
			name: "Negative opening debt",
			mutate: func(p *Params) {
				p.OpeningDebt = -5
				p.DebtTenorYears = 5
			},
			field: "openingDebt",
		},
		{
			name: "Unknown convention",
			mutate: func(p *Params) {
				p.DayCountConvention = "actual/366"
			},
			field: "dayCountConvention",
		},
		{
			name: "Unknown tranche style",
			mutate: func(p *Params) {
				p.Tranches = []TrancheConfig{{Amount: 100000, Rate: 0.06, TenorYears: 5, Amortization: "declining"}}
			},
			field: "tranches[0].amortization",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams()
			tt.mutate(&params)
			_, err := params.NormalizeDebt(nil)
			if err == nil {
				t.Fatalf("NormalizeDebt() expected error")
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("NormalizeDebt() error = %v, want ValidationError", err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Expected error field %s, got %s", tt.field, validationErr.Field)
			}
		})
	}
}

func TestNormalizeDebtLenientConvention(t *testing.T) {
	params := baseParams()
	params.Lenient = true
	params.DayCountConvention = "actual/366"
	params.OpeningDebt = 100000
	params.InterestRate = 0.06
	params.DebtTenorYears = 5

	debt, err := params.NormalizeDebt(nil)
	if err != nil {
		t.Fatalf("NormalizeDebt() error = %v in lenient mode", err)
	}
	if len(debt.Warnings) == 0 || !strings.Contains(debt.Warnings[0], "actual/366") {
		t.Errorf("Expected a fallback warning naming the unknown convention, got %v", debt.Warnings)
	}
	if debt.Tranches[0].Convention != "actual/365" {
		t.Errorf("Expected fallback convention actual/365, got %v", debt.Tranches[0].Convention)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Params)
		wantField string
	}{
		{
			name:   "Valid baseline",
			mutate: func(p *Params) {},
		},
		{
			name:      "Zero years",
			mutate:    func(p *Params) { p.Years = 0 },
			wantField: "years",
		},
		{
			name:      "Horizon too long",
			mutate:    func(p *Params) { p.Years = 51 },
			wantField: "years",
		},
		{
			name:      "Negative revenue",
			mutate:    func(p *Params) { p.BaseRevenue = -1 },
			wantField: "baseRevenue",
		},
		{
			name:      "COGS above one",
			mutate:    func(p *Params) { p.COGSPct = 1.5 },
			wantField: "cogsPct",
		},
		{
			name:      "Negative tax rate",
			mutate:    func(p *Params) { p.TaxRate = -0.1 },
			wantField: "taxRate",
		},
		{
			name:      "Zero discount rate",
			mutate:    func(p *Params) { p.WACC = 0 },
			wantField: "wacc",
		},
		{
			name:      "Non-finite growth",
			mutate:    func(p *Params) { p.Growth = math.NaN() },
			wantField: "growth",
		},
		{
			name:      "Exit multiple missing",
			mutate:    func(p *Params) { p.TerminalMethod = "exit-multiple" },
			wantField: "exitMultiple",
		},
		{
			name:      "Unknown terminal method",
			mutate:    func(p *Params) { p.TerminalMethod = "liquidation" },
			wantField: "terminalMethod",
		},
		{
			name:      "Negative equity contribution",
			mutate:    func(p *Params) { p.EquityContribution = -1 },
			wantField: "equityContribution",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams()
			tt.mutate(&params)
			err := params.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("Expected error field %s, got %s", tt.wantField, validationErr.Field)
			}
		})
	}
}

func TestValidateTerminalSpread(t *testing.T) {
	params := baseParams()
	params.WACC = 0.04
	params.TerminalGrowth = 0.06

	err := params.Validate()
	var terminalErr *valuation.TerminalValueError
	if !errors.As(err, &terminalErr) {
		t.Fatalf("Validate() error = %v, want TerminalValueError", err)
	}
	if terminalErr.WACC != 0.04 || terminalErr.Growth != 0.06 {
		t.Errorf("Unexpected error payload %+v", terminalErr)
	}

	// The exit multiple method does not depend on the perpetuity spread.
	params.TerminalMethod = "exit-multiple"
	params.ExitMultiple = 8
	if err := params.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with exit multiple = %v", err)
	}
}

func TestResolveTerminalMethod(t *testing.T) {
	tests := []struct {
		raw       string
		want      valuation.TerminalMethod
		wantError bool
	}{
		{"", valuation.TerminalPerpetuity, false},
		{"perpetuity", valuation.TerminalPerpetuity, false},
		{"exit-multiple", valuation.TerminalExitMultiple, false},
		{"exit_multiple", valuation.TerminalExitMultiple, false},
		{"ExitMultiple", valuation.TerminalExitMultiple, false},
		{"liquidation", "", true},
	}

	for _, tt := range tests {
		params := baseParams()
		params.TerminalMethod = tt.raw
		got, err := params.ResolveTerminalMethod()
		if tt.wantError {
			if err == nil {
				t.Errorf("ResolveTerminalMethod(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveTerminalMethod(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveTerminalMethod(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestScenarioApply(t *testing.T) {
	base := baseParams()
	base.Tranches = []TrancheConfig{
		{Name: "Senior", Amount: 300000, Rate: 0.06, TenorYears: 5},
	}
	base.InterestRate = 0.07

	growth := -0.02
	cogs := 0.45
	shock := 0.02
	scenario := Scenario{
		Name:      "downside",
		Active:    true,
		Growth:    &growth,
		COGSPct:   &cogs,
		RateShock: &shock,
	}

	stressed := scenario.Apply(base)

	if stressed.Growth != -0.02 {
		t.Errorf("Expected stressed growth -0.02, got %v", stressed.Growth)
	}
	if stressed.COGSPct != 0.45 {
		t.Errorf("Expected stressed COGS 0.45, got %v", stressed.COGSPct)
	}
	if math.Abs(stressed.Tranches[0].Rate-0.08) > 1e-12 {
		t.Errorf("Expected shocked tranche rate 0.08, got %v", stressed.Tranches[0].Rate)
	}
	if math.Abs(stressed.InterestRate-0.09) > 1e-12 {
		t.Errorf("Expected shocked legacy rate 0.09, got %v", stressed.InterestRate)
	}

	// The base model must be untouched by the stress run.
	if base.Growth != 0.05 {
		t.Errorf("Base growth mutated to %v", base.Growth)
	}
	if base.Tranches[0].Rate != 0.06 {
		t.Errorf("Base tranche rate mutated to %v", base.Tranches[0].Rate)
	}
	if stressed.OpexPct != base.OpexPct {
		t.Errorf("Expected unoverridden fields carried over")
	}
}

func TestLints(t *testing.T) {
	params := baseParams()
	if warnings := params.Lints(); len(warnings) != 0 {
		t.Errorf("Expected no lints for baseline, got %v", warnings)
	}

	params.Growth = 0.60
	params.COGSPct = 0.55
	params.OpexPct = 0.50
	params.TerminalGrowth = 0.095
	params.Tranches = []TrancheConfig{
		{Name: "Senior", Amount: 100000, Rate: 0.30, TenorYears: 8},
	}

	warnings := params.Lints()
	if len(warnings) != 5 {
		t.Fatalf("Expected 5 lints, got %d: %v", len(warnings), warnings)
	}
	joined := strings.Join(warnings, "; ")
	for _, fragment := range []string{"growth", "margin", "terminal", "senior"} {
		if !strings.Contains(strings.ToLower(joined), fragment) {
			t.Errorf("Expected a lint mentioning %q, got %v", fragment, warnings)
		}
	}
}
