package worker

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harshul/vidnote/internal/api"
)

type server struct {
	manager *Manager
	store   *Store
	log     *slog.Logger
}

// NewRouter builds the worker's HTTP API.
func NewRouter(manager *Manager, store *Store, log *slog.Logger) http.Handler {
	s := &server{manager: manager, store: store, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog(log))

	r.Get("/", s.handleStatus)
	r.Get("/health", s.handleStatus)
	r.Route("/api", func(r chi.Router) {
		r.Post("/download", s.handleSubmit)
		r.Get("/download/{taskID}", s.handleGetTask)
		r.Get("/downloads", s.handleList)
	})
	return r
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.StatusResponse{
		Status:  "ok",
		Message: "vidnote worker is running",
	})
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.manager.Submit(req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, api.DownloadResponse{
		Success: true,
		Message: "Download started",
		TaskID:  task.TaskID,
	})
}

func (s *server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.store.Get(chi.URLParam(r, "taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

// accessLog logs each request to the worker logger, which writes to stderr.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}
