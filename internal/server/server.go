package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"underwrite/internal/advisor"
	"underwrite/internal/engine"
	"underwrite/internal/model"
	"underwrite/pkg/amort"
	"underwrite/pkg/constants"
	"underwrite/pkg/output"
	"underwrite/pkg/valuation"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RequestIDHeader carries the correlation ID echoed on every API response.
const RequestIDHeader = "X-Request-ID"

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the underwriting API.
func NewHandler(logger *zap.Logger, maxUploadSize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, maxUploadSize: maxUploadSize, version: trimmedVersion}

	mux := http.NewServeMux()

	// Projection API endpoint (model file upload)
	mux.HandleFunc("/api/projection", h.handleProjection)

	// Projection API endpoint for editor-driven JSON payloads
	mux.HandleFunc("/api/editor/projection", h.handleProjectionEditor)

	// Standalone DCF valuation over a caller-supplied cash flow series
	mux.HandleFunc("/api/valuation", h.handleValuation)

	// Valuation sensitivity grid over WACC and terminal growth
	mux.HandleFunc("/api/sensitivity", h.handleSensitivity)

	// Capital structure assessment for an uploaded model
	mux.HandleFunc("/api/advice", h.handleAdvice)

	// Version endpoint for client metadata
	mux.HandleFunc("/api/version", h.handleVersion)

	return withRequestID(logger, mux)
}

type projectionResponse struct {
	DealName   string                 `json:"dealName,omitempty"`
	Scenarios  []string               `json:"scenarios"`
	Results    []*engine.Result       `json:"results"`
	CSV        string                 `json:"csv"`
	Duration   string                 `json:"duration"`
	Config     map[string]interface{} `json:"config,omitempty"`
	ConfigYAML string                 `json:"configYaml,omitempty"`
}

type sensitivityRequest struct {
	valuation.Input
	Steps      int     `json:"steps,omitempty"`
	WACCStep   float64 `json:"waccStep,omitempty"`
	GrowthStep float64 `json:"growthStep,omitempty"`
}

type sensitivityResponse struct {
	WACCs   []float64    `json:"waccs"`
	Growths []float64    `json:"growths"`
	Cells   [][]*float64 `json:"cells"`
}

func (h *handler) handleProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize))
			return
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "missing model file")
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", "server.handleProjection"),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read model file: %v", err))
		return
	}

	modelBytes := buf.Bytes()
	modelMap, err := decodeYAMLToMap(modelBytes)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("error reading model data, %v", err))
		return
	}

	h.runProjection(w, modelBytes, modelMap, start, "server.handleProjection")
}

func (h *handler) handleProjectionEditor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	modelBytes, modelMap, err := decodeModelPayload(r)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), "server.handleProjectionEditor")
		return
	}

	h.runProjection(w, modelBytes, modelMap, start, "server.handleProjectionEditor")
}

func (h *handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var input valuation.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest,
			fmt.Sprintf("failed to decode valuation input: %v", err), "server.handleValuation")
		return
	}

	result, err := valuation.Calculate(input)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), err.Error(), "server.handleValuation")
		return
	}

	h.logger.Debug("valuation computed",
		zap.String("op", "server.handleValuation"),
		zap.String("requestID", requestID(w)),
		zap.Int("cashFlows", len(input.CashFlows)),
	)

	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req sensitivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest,
			fmt.Sprintf("failed to decode sensitivity input: %v", err), "server.handleSensitivity")
		return
	}

	steps := req.Steps
	if steps <= 0 {
		steps = constants.DefaultSensitivitySteps
	}
	waccStep := req.WACCStep
	if waccStep <= 0 {
		waccStep = constants.DefaultWACCStep
	}
	growthStep := req.GrowthStep
	if growthStep <= 0 {
		growthStep = constants.DefaultGrowthStep
	}

	waccs := valuation.SymmetricRange(req.Input.WACC, steps, waccStep)
	growths := valuation.SymmetricRange(req.Input.TerminalGrowth, steps, growthStep)

	cells, err := valuation.SensitivityMatrix(req.Input, waccs, growths)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), err.Error(), "server.handleSensitivity")
		return
	}

	h.writeJSON(w, http.StatusOK, sensitivityResponse{WACCs: waccs, Growths: growths, Cells: cells})
}

func (h *handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	modelBytes, _, err := decodeModelPayload(r)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), "server.handleAdvice")
		return
	}

	m, err := model.LoadModelFromReader(bytes.NewReader(modelBytes))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), "server.handleAdvice")
		return
	}
	m.ApplyDefaults(time.Now())

	result, err := engine.NewBuilder(h.logger).Build(m.Params)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), err.Error(), "server.handleAdvice")
		return
	}
	result.ScenarioName = engine.BaseScenarioName

	report, err := advisor.NewAdvisor(h.logger).Assess(result, m.Params)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), "server.handleAdvice")
		return
	}

	h.logger.Info("advice computed",
		zap.String("op", "server.handleAdvice"),
		zap.String("requestID", requestID(w)),
		zap.String("industry", report.Industry),
		zap.Int("issues", len(report.Issues)),
	)

	h.writeJSON(w, http.StatusOK, report)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) runProjection(w http.ResponseWriter, modelBytes []byte, modelMap map[string]interface{}, start time.Time, op string) {
	m, err := model.LoadModelFromReader(bytes.NewReader(modelBytes))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	m.ApplyDefaults(time.Now())

	results, err := engine.NewBuilder(h.logger).RunScenarios(m)
	if err != nil {
		h.respondErrorWithOp(w, statusForError(err), err.Error(), op)
		return
	}

	elapsed := time.Since(start)

	if modelMap == nil {
		modelMap = make(map[string]interface{})
	}

	response := projectionResponse{
		DealName:   m.Params.DealName,
		Scenarios:  scenarioNames(results),
		Results:    results,
		CSV:        output.CsvString(results),
		Duration:   elapsed.String(),
		Config:     modelMap,
		ConfigYAML: string(modelBytes),
	}

	h.logger.Info("projection computed",
		zap.String("op", op),
		zap.String("requestID", requestID(w)),
		zap.Int("scenarios", len(response.Scenarios)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

// decodeModelPayload reads a JSON request body holding either the model
// object itself or a wrapper with the model under a config key, and returns
// the model re-encoded as YAML alongside its generic map form.
func decodeModelPayload(r *http.Request) ([]byte, map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("failed to decode model payload: %v", err)
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	modelPayload := payload
	if rawConfig, ok := payload["config"]; ok {
		cfgMap, ok := rawConfig.(map[string]interface{})
		if !ok {
			return nil, nil, fmt.Errorf("invalid config payload: expected object")
		}
		modelPayload = cfgMap
	}

	modelBytes, err := yaml.Marshal(modelPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode model payload: %v", err)
	}

	modelMap, err := decodeYAMLToMap(modelBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse model payload: %v", err)
	}

	return modelBytes, modelMap, nil
}

func decodeYAMLToMap(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make(map[string]interface{}), nil
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]interface{})
	}
	return result, nil
}

// statusForError maps computation failures to HTTP statuses. Typed domain
// errors describe problems with the submitted model, so they are client
// errors; anything untyped is a server fault.
func statusForError(err error) int {
	var validationErr *model.ValidationError
	var terminalErr *valuation.TerminalValueError
	var cashFlowErr *valuation.InvalidCashFlowError
	var inputErr *valuation.InvalidInputError
	var amortErr *amort.InvalidAmortizationError
	var nonFiniteErr *engine.NonFiniteError
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &terminalErr),
		errors.As(err, &cashFlowErr),
		errors.As(err, &inputErr),
		errors.As(err, &amortErr),
		errors.As(err, &nonFiniteErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondErrorWithOp(w, status, msg, "server.handleProjection")
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.String("requestID", requestID(w)),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func scenarioNames(results []*engine.Result) []string {
	names := make([]string, 0, len(results))
	for _, result := range results {
		names = append(names, result.ScenarioName)
	}
	return names
}

// withRequestID assigns each request a correlation ID, honoring one supplied
// by the caller, and emits an access log line once the handler returns.
func withRequestID(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		logger.Debug("request handled",
			zap.String("op", "server.withRequestID"),
			zap.String("requestID", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestID(w http.ResponseWriter) string {
	return w.Header().Get(RequestIDHeader)
}
