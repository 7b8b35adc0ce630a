package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"underwrite/internal/advisor"
	"underwrite/internal/compare"
	"underwrite/internal/engine"
	"underwrite/internal/model"
	"underwrite/pkg/constants"
	"underwrite/pkg/output"
	"underwrite/pkg/validation"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initializeLogger creates a zap logger based on model configuration and CLI override
func initializeLogger(loggingConfig model.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info" // Default to info level
	}

	// Parse log level
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	// Determine output format
	format := loggingConfig.Format
	if format == "" {
		format = "json" // Default to JSON for production
	}

	// Configure encoder
	var config zap.Config
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	// Configure output file if specified
	if loggingConfig.OutputFile != "" {
		// Ensure the directory exists
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Test if we can create/write to the file
		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		config.OutputPaths = []string{loggingConfig.OutputFile}
		config.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return config.Build()
}

func main() {
	// Process command line flags first to get model location
	modelLocation := flag.String("config", constants.DefaultModelFile, "path to model file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	scenarioFilter := flag.String("scenario", "", "run only the named scenario")
	auditFlag := flag.Bool("audit", false, "audit the embedded valuation against a standalone run")
	sensitivityFlag := flag.Bool("sensitivity", false, "print the enterprise value sensitivity grid")
	adviseFlag := flag.Bool("advise", false, "print the capital structure assessment")
	flag.Parse()

	// Load the model file to get logging configuration
	m, err := model.LoadModel(*modelLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load model at %s\", \"error\": \"%v\"}\n", *modelLocation, err)
		return
	}
	m.ApplyDefaults(time.Now())

	// Initialize logging based on model config and CLI override
	logger, err := initializeLogger(m.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	configuredFormat := m.Output.Format
	if *outputFormatFlag != "" {
		configuredFormat = *outputFormatFlag
	}
	outputFormat, err := validation.ResolveOutputFormat(configuredFormat)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Restrict the run to one scenario when requested; the filter also
	// activates a shelved scenario so it can be run in isolation.
	if *scenarioFilter != "" {
		kept := make([]model.Scenario, 0, 1)
		for _, scenario := range m.Scenarios {
			if strings.EqualFold(scenario.Name, *scenarioFilter) {
				scenario.Active = true
				kept = append(kept, scenario)
			}
		}
		if len(kept) == 0 {
			logger.Fatal("unknown scenario",
				zap.String("op", "main"),
				zap.String("scenario", *scenarioFilter),
			)
		}
		m.Scenarios = kept
	}

	// Surface base parameter warnings before computing
	for _, warning := range m.Params.Lints() {
		logger.Warn("Model warning: "+warning,
			zap.String("op", "main"),
		)
	}

	// Build every active scenario projection.
	builder := engine.NewBuilder(logger)
	results, err := builder.RunScenarios(m)
	if err != nil {
		logger.Fatal("failed to build projections",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	// Handle output.
	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(results)
	case constants.OutputFormatCSV:
		output.CsvFormat(results)
	}

	if !*auditFlag && !*sensitivityFlag && !*adviseFlag {
		return
	}

	// The diagnostic modes work off the deal as modeled, not the stress
	// variants, so they share one base projection.
	base, err := builder.Build(m.Params)
	if err != nil {
		logger.Fatal("failed to build base projection",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	base.ScenarioName = engine.BaseScenarioName

	if *auditFlag {
		report, err := compare.NewAuditor(logger).AuditValuation(base, m.Params, 0)
		if err != nil {
			logger.Fatal("failed to audit valuation",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		fmt.Println()
		output.PrettyAudit(report)
	}

	if *sensitivityFlag {
		grid, err := builder.Sensitivity(m.Params, base, 0)
		if err != nil {
			logger.Fatal("failed to compute sensitivity grid",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		fmt.Println()
		output.PrettySensitivity(grid)
	}

	if *adviseFlag {
		report, err := advisor.NewAdvisor(logger).Assess(base, m.Params)
		if err != nil {
			logger.Fatal("failed to assess capital structure",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		fmt.Println()
		output.PrettyAdvice(report)
	}
}
