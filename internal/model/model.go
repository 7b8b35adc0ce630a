// Package model defines the data structures for a projection model and
// includes functions for loading, normalizing, and validating model files.
package model

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"underwrite/pkg/covenant"
)

// Model holds the root structure of a model file: the base parameter set,
// optional stress scenarios, and run configuration.
type Model struct {
	Params    Params        `yaml:"params" json:"params"`
	Scenarios []Scenario    `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
	Logging   LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
	Output    OutputConfig  `yaml:"output,omitempty" json:"output,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" json:"level,omitempty"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" json:"format,omitempty"`         // json or console
	OutputFile string `yaml:"outputFile,omitempty" json:"outputFile,omitempty"` // optional log file path
}

// OutputConfig holds output formatting configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // pretty or csv
}

// Params is the base parameter set for one projection run.
type Params struct {
	DealName  string `yaml:"dealName,omitempty" json:"dealName,omitempty"`
	Industry  string `yaml:"industry,omitempty" json:"industry,omitempty"`
	StartYear int    `yaml:"startYear,omitempty" json:"startYear,omitempty"`
	Years     int    `yaml:"years" json:"years"`

	// Operating drivers.
	BaseRevenue      float64  `yaml:"baseRevenue" json:"baseRevenue"`
	Growth           float64  `yaml:"growth,omitempty" json:"growth,omitempty"`
	COGSPct          float64  `yaml:"cogsPct,omitempty" json:"cogsPct,omitempty"`
	OpexPct          float64  `yaml:"opexPct,omitempty" json:"opexPct,omitempty"`
	CapexPct         float64  `yaml:"capexPct,omitempty" json:"capexPct,omitempty"`
	DAPctOfPPE       float64  `yaml:"daPctOfPPE,omitempty" json:"daPctOfPPE,omitempty"`
	WCPctOfRevenue   float64  `yaml:"wcPctOfRevenue,omitempty" json:"wcPctOfRevenue,omitempty"`
	TaxRate          float64  `yaml:"taxRate,omitempty" json:"taxRate,omitempty"`
	CashRetentionPct *float64 `yaml:"cashRetentionPct,omitempty" json:"cashRetentionPct,omitempty"`

	// Opening balance sheet.
	OpeningCash float64 `yaml:"openingCash,omitempty" json:"openingCash,omitempty"`
	OpeningPPE  float64 `yaml:"openingPPE,omitempty" json:"openingPPE,omitempty"`

	// Debt, either as explicit tranches or via the single-facility fields
	// below. When both are present the tranches win; see NormalizeDebt.
	Tranches []TrancheConfig `yaml:"tranches,omitempty" json:"tranches,omitempty"`

	OpeningDebt         float64   `yaml:"openingDebt,omitempty" json:"openingDebt,omitempty"`
	RequestedLoanAmount float64   `yaml:"requestedLoanAmount,omitempty" json:"requestedLoanAmount,omitempty"`
	InterestRate        float64   `yaml:"interestRate,omitempty" json:"interestRate,omitempty"`
	DebtTenorYears      int       `yaml:"debtTenorYears,omitempty" json:"debtTenorYears,omitempty"`
	InterestOnlyYears   int       `yaml:"interestOnlyYears,omitempty" json:"interestOnlyYears,omitempty"`
	Amortization        string    `yaml:"amortization,omitempty" json:"amortization,omitempty"`
	BalloonPct          float64   `yaml:"balloonPct,omitempty" json:"balloonPct,omitempty"`
	CustomPrincipalPct  []float64 `yaml:"customPrincipalPct,omitempty" json:"customPrincipalPct,omitempty"`
	PaymentFrequency    string    `yaml:"paymentFrequency,omitempty" json:"paymentFrequency,omitempty"`
	DayCountConvention  string    `yaml:"dayCountConvention,omitempty" json:"dayCountConvention,omitempty"`

	Covenants covenant.Thresholds `yaml:"covenants,omitempty" json:"covenants,omitempty"`

	// Valuation.
	WACC              float64  `yaml:"wacc" json:"wacc"`
	TerminalGrowth    float64  `yaml:"terminalGrowth,omitempty" json:"terminalGrowth,omitempty"`
	TerminalMethod    string   `yaml:"terminalMethod,omitempty" json:"terminalMethod,omitempty"`
	ExitMultiple      float64  `yaml:"exitMultiple,omitempty" json:"exitMultiple,omitempty"`
	MidYearConvention bool     `yaml:"midYearConvention,omitempty" json:"midYearConvention,omitempty"`
	SharesOutstanding float64  `yaml:"sharesOutstanding,omitempty" json:"sharesOutstanding,omitempty"`
	CashAtValuation   *float64 `yaml:"cashAtValuation,omitempty" json:"cashAtValuation,omitempty"`
	AssociatesValue   float64  `yaml:"associatesValue,omitempty" json:"associatesValue,omitempty"`
	MinorityInterest  float64  `yaml:"minorityInterest,omitempty" json:"minorityInterest,omitempty"`

	// Equity returns.
	EquityContribution float64 `yaml:"equityContribution,omitempty" json:"equityContribution,omitempty"`

	// Lenient downgrades recoverable input problems from errors to warnings.
	Lenient bool `yaml:"lenient,omitempty" json:"lenient,omitempty"`
}

// TrancheConfig is one debt facility as written in a model file. Maturity may
// be given as a relative tenor or as an absolute calendar year; see
// NormalizeDebt for how the two resolve.
type TrancheConfig struct {
	Name               string    `yaml:"name,omitempty" json:"name,omitempty"`
	Amount             float64   `yaml:"amount" json:"amount"`
	Rate               float64   `yaml:"rate" json:"rate"`
	TenorYears         int       `yaml:"tenorYears,omitempty" json:"tenorYears,omitempty"`
	MaturityYear       int       `yaml:"maturityYear,omitempty" json:"maturityYear,omitempty"`
	InterestOnlyYears  int       `yaml:"interestOnlyYears,omitempty" json:"interestOnlyYears,omitempty"`
	Amortization       string    `yaml:"amortization,omitempty" json:"amortization,omitempty"`
	BalloonPct         float64   `yaml:"balloonPct,omitempty" json:"balloonPct,omitempty"`
	CustomPrincipalPct []float64 `yaml:"customPrincipalPct,omitempty" json:"customPrincipalPct,omitempty"`
	PaymentFrequency   string    `yaml:"paymentFrequency,omitempty" json:"paymentFrequency,omitempty"`
	DayCountConvention string    `yaml:"dayCountConvention,omitempty" json:"dayCountConvention,omitempty"`
	Seniority          int       `yaml:"seniority,omitempty" json:"seniority,omitempty"`
}

// Scenario overrides selected base parameters for a stress run. Nil fields
// leave the base value untouched.
type Scenario struct {
	Name           string   `yaml:"name" json:"name"`
	Active         bool     `yaml:"active" json:"active"`
	Growth         *float64 `yaml:"growth,omitempty" json:"growth,omitempty"`
	BaseRevenue    *float64 `yaml:"baseRevenue,omitempty" json:"baseRevenue,omitempty"`
	COGSPct        *float64 `yaml:"cogsPct,omitempty" json:"cogsPct,omitempty"`
	OpexPct        *float64 `yaml:"opexPct,omitempty" json:"opexPct,omitempty"`
	CapexPct       *float64 `yaml:"capexPct,omitempty" json:"capexPct,omitempty"`
	TaxRate        *float64 `yaml:"taxRate,omitempty" json:"taxRate,omitempty"`
	WACC           *float64 `yaml:"wacc,omitempty" json:"wacc,omitempty"`
	TerminalGrowth *float64 `yaml:"terminalGrowth,omitempty" json:"terminalGrowth,omitempty"`
	RateShock      *float64 `yaml:"rateShock,omitempty" json:"rateShock,omitempty"`
}

// LoadModel takes a file path and loads the model into a Model struct.
func LoadModel(modelLocation string) (*Model, error) {
	var model Model
	viper.SetConfigFile(modelLocation)
	viper.AutomaticEnv()
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return &model, fmt.Errorf("error reading model file %s, %s", modelLocation, err)
	}

	err := viper.Unmarshal(&model)
	if err != nil {
		return &model, fmt.Errorf("error parsing model file, %s", err)
	}

	return &model, nil
}

// LoadModelFromReader parses a model from an in-memory YAML stream. This is
// the path used for uploaded and editor-submitted models where no file exists
// on disk.
func LoadModelFromReader(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading model data, %s", err)
	}

	var model Model
	if err := yaml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("error parsing model data, %s", err)
	}

	return &model, nil
}

// ApplyDefaults fills in parameter defaults that depend on context rather
// than schema. The reference time anchors the start year when the model omits
// one.
func (m *Model) ApplyDefaults(now time.Time) {
	if m.Params.StartYear == 0 {
		m.Params.StartYear = now.Year()
	}
	if m.Params.CashRetentionPct == nil {
		full := 1.0
		m.Params.CashRetentionPct = &full
	}
	if m.Params.CashAtValuation == nil {
		cash := m.Params.OpeningCash
		m.Params.CashAtValuation = &cash
	}
}

// CashRetention returns the retention fraction, defaulting to full retention
// when the model leaves it unset.
func (p *Params) CashRetention() float64 {
	if p.CashRetentionPct == nil {
		return 1.0
	}
	return *p.CashRetentionPct
}

// ValuationCash returns the cash balance netted against debt in the equity
// bridge, defaulting to the opening cash balance.
func (p *Params) ValuationCash() float64 {
	if p.CashAtValuation == nil {
		return p.OpeningCash
	}
	return *p.CashAtValuation
}

// ActiveScenarios returns the scenarios flagged for execution.
func (m *Model) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, scenario := range m.Scenarios {
		if scenario.Active {
			active = append(active, scenario)
		}
	}
	return active
}
