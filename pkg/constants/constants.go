// Package constants provides shared constants for the underwrite application.
package constants

// Projection horizon limits
const (
	// MinProjectionYears is the shortest supported projection horizon
	MinProjectionYears = 1

	// MaxProjectionYears is the longest supported projection horizon
	MaxProjectionYears = 50
)

// Financial constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// DaysPerYear is the numerator basis used when normalizing Actual/360 rates
	DaysPerYear = 365.0

	// Days360 is the denominator basis for Actual/360 accrual
	Days360 = 360.0

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Payment frequency constants (payments per year)
const (
	// AnnualPayments is one payment per year
	AnnualPayments = 1

	// SemiannualPayments is two payments per year
	SemiannualPayments = 2

	// QuarterlyPayments is four payments per year
	QuarterlyPayments = 4

	// MonthlyPayments is twelve payments per year
	MonthlyPayments = 12
)

// Tolerance constants
const (
	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// RatioTolerance is the tolerance for covenant ratio comparisons
	RatioTolerance = 1e-6

	// ComparisonTolerance is the default tolerance for cross-engine audits
	ComparisonTolerance = 1e-6

	// CustomScheduleTolerance is the allowed deviation of custom principal
	// percentages from a full repayment, in percentage points
	CustomScheduleTolerance = 1.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultModelFile is the default model file name
	DefaultModelFile = "model.yaml"

	// ExampleModelFile is the example model file name
	ExampleModelFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for model files (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)

// IRR solver constants
const (
	// IRRMaxIterations caps the Newton-Raphson iteration count
	IRRMaxIterations = 30

	// IRRPrecision is the convergence threshold for the IRR solver
	IRRPrecision = 1e-6

	// IRRDefaultGuess seeds the Newton-Raphson iteration
	IRRDefaultGuess = 0.1
)

// Sensitivity matrix defaults
const (
	// DefaultSensitivitySteps is the number of points on each sensitivity axis
	DefaultSensitivitySteps = 5

	// DefaultWACCStep is the WACC increment between sensitivity steps
	DefaultWACCStep = 0.01

	// DefaultGrowthStep is the terminal growth increment between sensitivity steps
	DefaultGrowthStep = 0.005
)
