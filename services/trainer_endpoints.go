package services

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/questionbank"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultQuizSize = 10

type TrainerEndpoints struct {
	results TrainerStore
	audit   AuditStore
	bank    *questionbank.Bank

	mu  sync.Mutex
	rng *rand.Rand
}

func NewTrainerEndpoints(results TrainerStore, audit AuditStore, bank *questionbank.Bank) *TrainerEndpoints {
	now := uint64(time.Now().UnixNano())
	return &TrainerEndpoints{
		results: results,
		audit:   audit,
		bank:    bank,
		rng:     rand.New(rand.NewPCG(now, now>>1)),
	}
}

type StartTrainerRequest struct {
	ModuleKey string `json:"module_key"`
}

type SubmitTrainerRequest struct {
	ModuleKey string              `json:"module_key"`
	Answers   []models.QuizAnswer `json:"answers"`
	TimeTaken int                 `json:"time_taken"`
}

func (e *TrainerEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/trainer", func(r chi.Router) {
		r.Get("/categories", e.CategoriesHandler)
		r.Get("/questions/{category}", e.QuestionsHandler)
		r.Post("/start", e.StartHandler)
		r.Post("/submit", e.SubmitHandler)
		r.Get("/results", e.ListResultsHandler)
		r.Get("/results/{id}", e.GetResultHandler)
	})
}

func (e *TrainerEndpoints) CategoriesHandler(w http.ResponseWriter, r *http.Request) {
	modules := e.bank.Modules()
	categories := make([]map[string]any, 0, len(modules))
	for _, m := range modules {
		categories = append(categories, map[string]any{
			"key":            m.Key,
			"name":           m.Name,
			"question_count": len(m.Questions),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (e *TrainerEndpoints) QuestionsHandler(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	n := defaultQuizSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	// rand.Rand is not safe for concurrent use
	e.mu.Lock()
	questions, ok := e.bank.Sample(category, n, e.rng)
	e.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":  category,
		"questions": questions,
		"count":     len(questions),
	})
}

func (e *TrainerEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req StartTrainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	module := e.bank.ModuleOrDefault(req.ModuleKey)
	writeJSON(w, http.StatusOK, map[string]any{
		"module_key":      module.Key,
		"name":            module.Name,
		"questions":       module.Questions,
		"total_questions": len(module.Questions),
		"max_score":       models.TrainerMaxScore,
	})
}

func (e *TrainerEndpoints) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SubmitTrainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ModuleKey == "" {
		writeError(w, http.StatusBadRequest, "module_key is required")
		return
	}
	module, ok := e.bank.Module(req.ModuleKey)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown module_key")
		return
	}
	if req.TimeTaken < 0 {
		req.TimeTaken = 0
	}

	result, err := e.results.CreateTrainerResult(r.Context(), user.ID, module.Key, func(previous int64) *models.TrainerResult {
		res := models.NewTrainerResult(user.ID, module.Key, previous, module.Questions, req.Answers, req.TimeTaken)
		res.ID = uuid.New().String()
		return res
	})
	if err != nil {
		slog.Error("Failed to save trainer result", "error", err, "user_id", user.ID, "module_key", module.Key)
		writeError(w, http.StatusInternalServerError, "Failed to save result")
		return
	}

	recordAudit(r.Context(), e.audit, user.ID, models.AuditTrainerComplete, map[string]any{
		"result_id":  result.ID,
		"module_key": result.ModuleKey,
		"score":      result.Score,
		"attempt":    result.Attempts,
	})
	slog.Info("Trainer result saved", "user_id", user.ID, "module_key", module.Key, "score", result.Score, "attempt", result.Attempts)
	writeJSON(w, http.StatusCreated, result)
}

func (e *TrainerEndpoints) ListResultsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	results, err := e.results.ListTrainerResults(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get results")
		return
	}
	if results == nil {
		results = []models.TrainerResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (e *TrainerEndpoints) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := e.results.GetTrainerResult(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get result")
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "Result not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
