// Package server is the JSON route layer in front of the evaluator. It only
// frames requests and responses; evaluation semantics live in the evaluator
// package.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aidioma/aidioma/internal/evaluator"
	"github.com/aidioma/aidioma/internal/history"
)

type EvaluateHandler struct {
	service *evaluator.Service
	metrics *evaluator.Counters
	history *history.Repository
}

// NewEvaluateHandler wires the route layer. The history repository may be nil
// when no database is configured.
func NewEvaluateHandler(service *evaluator.Service, metrics *evaluator.Counters, historyRepository *history.Repository) *EvaluateHandler {
	return &EvaluateHandler{
		service: service,
		metrics: metrics,
		history: historyRepository,
	}
}

func (handler *EvaluateHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/evaluate", handler.handleEvaluate)
	mux.HandleFunc("GET /api/metrics", handler.handleMetrics)
	mux.HandleFunc("POST /api/metrics/reset", handler.handleMetricsReset)
	mux.HandleFunc("GET /healthz", handler.handleHealth)
	return mux
}

type evaluateRequest struct {
	Word        string `json:"word"`
	Context     string `json:"context"`
	Difficulty  string `json:"difficulty"`
	Language    string `json:"language"`
	PageContext string `json:"pageContext"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (handler *EvaluateHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(body.Word) == "" || strings.TrimSpace(body.Context) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "word and context are required"})
		return
	}

	request, err := parseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := handler.service.Evaluate(r.Context(), request)
	if err != nil {
		if errors.Is(err, evaluator.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "evaluation failed"})
		return
	}

	if handler.history != nil {
		if err := handler.history.Insert(r.Context(), history.Entry{
			Word:             request.Word,
			PageContext:      string(request.PageContext),
			Difficulty:       string(request.Difficulty),
			Status:           string(result.Status),
			Score:            result.Score,
			Cached:           result.Cached,
			Fallback:         result.Fallback,
			EvaluationTimeMs: result.EvaluationTimeMs,
		}); err != nil {
			slog.Default().Error("Failed to record evaluation",
				"word", request.Word,
				"error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (handler *EvaluateHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, handler.metrics.Snapshot())
}

func (handler *EvaluateHandler) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	handler.metrics.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (handler *EvaluateHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseRequest validates the enum fields, defaulting the optional ones the
// way the frontend leaves them out.
func parseRequest(body evaluateRequest) (evaluator.Request, error) {
	request := evaluator.Request{
		Word:        body.Word,
		Context:     body.Context,
		Difficulty:  evaluator.DifficultyBeginner,
		Language:    evaluator.LanguageSpanish,
		PageContext: evaluator.PagePractice,
	}

	switch evaluator.Difficulty(body.Difficulty) {
	case "":
	case evaluator.DifficultyBeginner, evaluator.DifficultyIntermediate, evaluator.DifficultyAdvanced:
		request.Difficulty = evaluator.Difficulty(body.Difficulty)
	default:
		return evaluator.Request{}, errors.New("difficulty must be one of beginner, intermediate, advanced")
	}

	switch evaluator.PageContext(body.PageContext) {
	case "":
	case evaluator.PagePractice, evaluator.PageReading, evaluator.PageMemorization, evaluator.PageConversation:
		request.PageContext = evaluator.PageContext(body.PageContext)
	default:
		return evaluator.Request{}, errors.New("pageContext must be one of practice, reading, memorization, conversation")
	}

	if body.Language != "" {
		request.Language = evaluator.Language(body.Language)
	}
	return request, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("Failed to encode response", "error", err)
	}
}
