package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/huhk345/alphagen-ai/internal/backtest"
	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/persistence"
)

// BacktestEngine runs one backtest to completion, mapping every failure into
// the response shape.
type BacktestEngine interface {
	Execute(ctx context.Context, req backtest.Request) backtest.Response
}

// MarketData resolves benchmarks and A-share codes to daily bar series.
type MarketData interface {
	ForBenchmark(ctx context.Context, benchmark domain.Benchmark) ([]domain.PricePoint, error)
	ForAShareCode(ctx context.Context, code string) ([]domain.PricePoint, error)
}

// FactorGenerator is the LLM collaborator.
type FactorGenerator interface {
	GenerateFactor(ctx context.Context, prompt string) (*domain.AlphaFactor, error)
	GenerateBulk(ctx context.Context, count int, theme string) ([]domain.AlphaFactor, error)
	GenerateCalculationLogic(ctx context.Context, formula string) (string, error)
}

// Handlers bundles the API endpoints and their collaborators. Generator,
// factors and results may be nil when the corresponding subsystem is not
// configured; their endpoints then report 503.
type Handlers struct {
	Engine    BacktestEngine
	Market    MarketData
	Generator FactorGenerator
	Factors   persistence.FactorsRepo
	Results   persistence.ResultsRepo
	Version   string
}

// Health reports service status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   h.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"metrics":   GatherSummary(),
	})
}

// NotFound is the JSON 404 handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed is the JSON 405 handler.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type backtestRequestBody struct {
	Formula       string              `json:"formula"`
	Code          string              `json:"code,omitempty"`
	Benchmark     string              `json:"benchmark"`
	CustomCode    string              `json:"customCode,omitempty"`
	BuyThreshold  string              `json:"buyThreshold,omitempty"`
	SellThreshold string              `json:"sellThreshold,omitempty"`
	PriceData     []domain.PricePoint `json:"priceData,omitempty"`
}

// Backtest runs a factor backtest. Price data comes from the request when
// supplied, otherwise from the market-data service; calculation logic comes
// from the request when supplied, otherwise from the LLM collaborator.
func (h *Handlers) Backtest(w http.ResponseWriter, r *http.Request) {
	var body backtestRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Formula == "" && body.Code == "" {
		writeError(w, http.StatusBadRequest, "formula or code is required")
		return
	}
	if body.Benchmark == "" && body.CustomCode == "" && len(body.PriceData) == 0 {
		writeError(w, http.StatusBadRequest, "benchmark, customCode or priceData is required")
		return
	}

	ctx := r.Context()
	prices := body.PriceData
	benchmarkLabel := body.Benchmark
	if len(prices) == 0 {
		var err error
		if body.CustomCode != "" {
			prices, err = h.Market.ForAShareCode(ctx, body.CustomCode)
			benchmarkLabel = body.CustomCode
		} else {
			prices, err = h.Market.ForBenchmark(ctx, domain.Benchmark(body.Benchmark))
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "market data unavailable: "+err.Error())
			return
		}
	}

	logic := body.Code
	if logic == "" {
		if h.Generator == nil {
			writeError(w, http.StatusServiceUnavailable, "formula translation is not configured; supply code directly")
			return
		}
		generated, err := h.Generator.GenerateCalculationLogic(ctx, body.Formula)
		if err != nil {
			writeError(w, http.StatusBadGateway, "calculation logic generation failed: "+err.Error())
			return
		}
		logic = generated
	}

	metrics := Metrics()
	metrics.ActiveBacktests.Inc()
	defer metrics.ActiveBacktests.Dec()

	start := time.Now()
	resp := h.Engine.Execute(ctx, backtest.Request{
		PriceData:        prices,
		CalculationLogic: logic,
		BenchmarkLabel:   benchmarkLabel,
		BuyThreshold:     body.BuyThreshold,
		SellThreshold:    body.SellThreshold,
	})
	metrics.ObserveBacktest(resp.Status, time.Since(start))
	if resp.Status != "success" {
		metrics.EvalErrors.Inc()
	}

	// Engine failures stay inside the response contract, not HTTP errors.
	writeJSON(w, http.StatusOK, resp)
}

// MarketData serves raw benchmark price series.
func (h *Handlers) MarketData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if code := r.URL.Query().Get("code"); code != "" {
		points, err := h.Market.ForAShareCode(ctx, code)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, points)
		return
	}

	benchmark := r.URL.Query().Get("benchmark")
	if benchmark == "" {
		writeError(w, http.StatusBadRequest, "benchmark query parameter is required")
		return
	}
	points, err := h.Market.ForBenchmark(ctx, domain.Benchmark(benchmark))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// Generate produces one alpha factor from a prompt.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	if h.Generator == nil {
		writeError(w, http.StatusServiceUnavailable, "factor generation is not configured")
		return
	}
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	factor, err := h.Generator.GenerateFactor(r.Context(), body.Prompt)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, factor)
}

// GenerateBulk produces several distinct factors around a theme.
func (h *Handlers) GenerateBulk(w http.ResponseWriter, r *http.Request) {
	if h.Generator == nil {
		writeError(w, http.StatusServiceUnavailable, "factor generation is not configured")
		return
	}
	var body struct {
		Count int    `json:"count"`
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		writeError(w, http.StatusBadRequest, "count must be positive")
		return
	}
	factors, err := h.Generator.GenerateBulk(r.Context(), body.Count, body.Theme)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, factors)
}

// SaveFactor upserts one factor for a user.
func (h *Handlers) SaveFactor(w http.ResponseWriter, r *http.Request) {
	if h.Factors == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	var body struct {
		UserID string             `json:"userId"`
		Factor domain.AlphaFactor `json:"factor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" || body.Factor.ID == "" {
		writeError(w, http.StatusBadRequest, "userId and factor.id are required")
		return
	}
	if err := h.Factors.Save(r.Context(), body.UserID, body.Factor); err != nil {
		log.Error().Err(err).Msg("save factor failed")
		writeError(w, http.StatusInternalServerError, "failed to save factor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SyncFactors replaces a user's factor set.
func (h *Handlers) SyncFactors(w http.ResponseWriter, r *http.Request) {
	if h.Factors == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	var body struct {
		UserID  string               `json:"userId"`
		Factors []domain.AlphaFactor `json:"factors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.Factors.Sync(r.Context(), body.UserID, body.Factors); err != nil {
		log.Error().Err(err).Msg("sync factors failed")
		writeError(w, http.StatusInternalServerError, "failed to sync factors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteFactor removes one factor owned by a user.
func (h *Handlers) DeleteFactor(w http.ResponseWriter, r *http.Request) {
	if h.Factors == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	factorID := mux.Vars(r)["id"]
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.Factors.Delete(r.Context(), body.UserID, factorID); err != nil {
		log.Error().Err(err).Str("factor_id", factorID).Msg("delete factor failed")
		writeError(w, http.StatusInternalServerError, "failed to delete factor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListFactors returns a user's saved factors.
func (h *Handlers) ListFactors(w http.ResponseWriter, r *http.Request) {
	if h.Factors == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}
	factors, err := h.Factors.ListByUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("list factors failed")
		writeError(w, http.StatusInternalServerError, "failed to list factors")
		return
	}
	if factors == nil {
		factors = []domain.AlphaFactor{}
	}
	writeJSON(w, http.StatusOK, factors)
}

// SaveBacktest persists a backtest result for a factor.
func (h *Handlers) SaveBacktest(w http.ResponseWriter, r *http.Request) {
	if h.Results == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	var body struct {
		UserID   string                `json:"userId"`
		FactorID string                `json:"factorId"`
		Result   domain.BacktestResult `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" || body.FactorID == "" {
		writeError(w, http.StatusBadRequest, "userId and factorId are required")
		return
	}
	if err := h.Results.Save(r.Context(), body.UserID, body.FactorID, body.Result); err != nil {
		log.Error().Err(err).Msg("save backtest failed")
		writeError(w, http.StatusInternalServerError, "failed to save backtest result")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListBacktests returns stored results for a factor.
func (h *Handlers) ListBacktests(w http.ResponseWriter, r *http.Request) {
	if h.Results == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	factorID := r.URL.Query().Get("factorId")
	if factorID == "" {
		writeError(w, http.StatusBadRequest, "factorId query parameter is required")
		return
	}
	results, err := h.Results.ListByFactor(r.Context(), factorID)
	if err != nil {
		log.Error().Err(err).Msg("list backtests failed")
		writeError(w, http.StatusInternalServerError, "failed to list backtest results")
		return
	}
	if results == nil {
		results = []persistence.StoredBacktest{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
