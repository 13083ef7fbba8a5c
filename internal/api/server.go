package api

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/notekit/notekit/internal/config"
	"github.com/notekit/notekit/internal/constants"
	interrors "github.com/notekit/notekit/internal/errors"
	"github.com/notekit/notekit/internal/logger"
	"github.com/notekit/notekit/internal/models"
	"github.com/notekit/notekit/internal/ratelimit"
	"github.com/notekit/notekit/internal/search"
	"github.com/notekit/notekit/internal/stats"
)

// APIKeyHeader is the shared-secret header checked on every API request.
const APIKeyHeader = "X-API-Key"

type APIServer struct {
	cfg     *config.Config
	db      *sql.DB
	repo    *models.NoteRepository
	engine  *search.Engine
	stats   *stats.Aggregator
	limiter *ratelimit.Limiter
	server  *http.Server
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateNoteRequest uses pointers so an omitted field is distinguishable
// from an empty one.
type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type ListNotesResponse struct {
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
	Data  []*models.Note `json:"data"`
}

func NewAPIServer(cfg *config.Config, db *sql.DB, repo *models.NoteRepository, engine *search.Engine, aggregator *stats.Aggregator, limiter *ratelimit.Limiter) *APIServer {
	return &APIServer{
		cfg:     cfg,
		db:      db,
		repo:    repo,
		engine:  engine,
		stats:   aggregator,
		limiter: limiter,
	}
}

// Router builds the full HTTP handler, including auth and CORS. Exposed
// separately from Start so tests can drive it with httptest.
func (s *APIServer) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	// Health stays outside the auth guard so probes work unauthenticated.
	router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requireAPIKey)

	// Fixed paths before the {id} routes; mux matches in registration order.
	api.HandleFunc("/notes/search", s.handleSearchNotes).Methods("GET")
	api.HandleFunc("/notes/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/notes", s.handleListNotes).Methods("GET")
	api.HandleFunc("/notes", s.handleCreateNote).Methods("POST")
	api.HandleFunc("/notes/{id}", s.handleGetNote).Methods("GET")
	api.HandleFunc("/notes/{id}", s.handleUpdateNote).Methods("PUT")
	api.HandleFunc("/notes/{id}", s.handleDeleteNote).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure this more restrictively in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	})

	return c.Handler(router)
}

func (s *APIServer) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Starting HTTP API server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *APIServer) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the status code a handler writes so the request
// log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// logRequests traces each request and its outcome. The recorder wrapper is
// skipped entirely when debug mode is off.
func (s *APIServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !logger.IsDebugMode() {
			next.ServeHTTP(w, r)
			return
		}

		logger.LogRequest(r.Method, r.URL.Path, r.RemoteAddr)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.LogResponse(r.Method, r.URL.Path, rec.status, time.Since(start).String())
	})
}

// requireAPIKey rejects requests whose X-API-Key header does not match the
// configured shared secret.
func (s *APIServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) != 1 {
			logger.Warn("Rejected %s %s from %s: invalid API key", r.Method, r.URL.Path, r.RemoteAddr)
			s.writeError(w, http.StatusUnauthorized, interrors.ErrInvalidAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: statusCode < 400,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error:   err.Error(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
	}
}

// statusForError maps domain errors onto HTTP status codes.
func (s *APIServer) statusForError(err error) int {
	var rateErr *interrors.RateLimitError
	switch {
	case errors.Is(err, interrors.ErrNoteNotFound):
		return http.StatusNotFound
	case interrors.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Handlers

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.db.Ping(); err != nil {
		health["status"] = "unhealthy"
		health["database_error"] = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	s.writeJSON(w, http.StatusOK, health)
}

func (s *APIServer) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Allow(); err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	note, created, err := s.repo.Create(req.Title, req.Content)
	if err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	} else {
		logger.Debug("Create replayed for existing note %s", note.ID)
	}
	s.writeJSON(w, status, note)
}

func (s *APIServer) handleListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := constants.DefaultPage
	if str := q.Get("page"); str != "" {
		p, err := strconv.Atoi(str)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, interrors.ErrInvalidPage)
			return
		}
		page = p
	}

	limit := constants.DefaultPageSize
	if str := q.Get("limit"); str != "" {
		l, err := strconv.Atoi(str)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, interrors.ErrInvalidLimit)
			return
		}
		limit = l
	}

	sortBy := q.Get("sort_by")
	if sortBy == "" {
		sortBy = "updated_at"
	}
	order := q.Get("order")

	notes, total, err := s.repo.List(page, limit, sortBy, order)
	if err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, ListNotesResponse{
		Page:  page,
		Limit: limit,
		Total: total,
		Data:  notes,
	})
}

func (s *APIServer) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	note, err := s.repo.GetByID(id)
	if err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, note)
}

func (s *APIServer) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	note, changed, err := s.repo.Update(id, req.Title, req.Content)
	if err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	if !changed {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "no changes detected",
			"note":    note,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, note)
}

func (s *APIServer) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deleted, err := s.repo.SoftDelete(id)
	if err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	message := "note soft deleted"
	if !deleted {
		message = "note already deleted"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *APIServer) handleSearchNotes(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.Search(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, s.statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, results)
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stats.Collect()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}
