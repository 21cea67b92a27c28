// Package server implements the submission side: the form, the task list
// and the JSON/stats endpoints. It creates task records in the queued state
// and enqueues their identifiers; the worker owns them from there.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/raphaelgruber/notegen/internal/ident"
	"github.com/raphaelgruber/notegen/internal/metrics"
	"github.com/raphaelgruber/notegen/internal/models"
	"github.com/raphaelgruber/notegen/web"
)

// TaskStore is the persistence surface the server needs.
type TaskStore interface {
	Save(ctx context.Context, task *models.Task) error
	List(ctx context.Context) ([]models.Task, error)
}

// Publisher enqueues task identifiers for the worker.
type Publisher interface {
	Send(ctx context.Context, body string) error
}

// LinkResolver validates a public share link before the task is accepted.
type LinkResolver interface {
	Resolve(ctx context.Context, publicURL string) *models.LinkMetadata
}

// Server wires the HTTP routes with their dependencies.
type Server struct {
	tasks     TaskStore
	publisher Publisher
	links     LinkResolver
	ids       *ident.Generator
	collector *metrics.Collector
	templates *template.Template
	logger    *slog.Logger
	now       func() time.Time
}

// New creates the submission server.
func New(tasks TaskStore, publisher Publisher, links LinkResolver, ids *ident.Generator, collector *metrics.Collector, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		tasks:     tasks,
		publisher: publisher,
		links:     links,
		ids:       ids,
		collector: collector,
		templates: tmpl,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Router builds the chi router with request logging and recovery middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(httplog.NewLogger("notegen", httplog.Options{
		Concise: true,
	})))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/submit", s.handleSubmit)
	r.Get("/tasks", s.handleTaskList)
	r.Get("/tasks/json", s.handleTasksJSON)
	r.Get("/stats", s.handleStats)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		s.logger.Error("rendering index failed", "error", err)
	}
}

// handleSubmit creates the task record and enqueues its id. Tasks with a
// blank title or an unusable link are persisted directly in the terminal
// error state and never enqueued.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(r.PostFormValue("title"))
	sourceURL := strings.TrimSpace(r.PostFormValue("source_url"))

	task := &models.Task{
		ID:        s.ids.Next(),
		Title:     title,
		CreatedAt: models.NewCreatedAt(s.now()),
		Status:    models.StatusQueued,
		SourceURL: sourceURL,
	}

	if title == "" {
		task.Status = models.StatusError
		task.ErrorMessage = "Title is required"
		s.saveAndRedirect(w, r, task)
		return
	}

	var meta *models.LinkMetadata
	if err := s.collector.Observe(metrics.OpValidate, func() error {
		meta = s.links.Resolve(r.Context(), sourceURL)
		if meta == nil || meta.File == "" {
			return fmt.Errorf("invalid link")
		}
		return nil
	}); err != nil {
		task.Status = models.StatusError
		task.ErrorMessage = fmt.Sprintf("Invalid share link (task_id=%d)", task.ID)
		s.saveAndRedirect(w, r, task)
		return
	}
	task.Metadata = meta

	if err := s.tasks.Save(r.Context(), task); err != nil {
		s.logger.Error("persisting task failed", "task_id", task.ID, "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	body, _ := json.Marshal(map[string]int64{"task_id": task.ID})
	if err := s.collector.Observe(metrics.OpEnqueue, func() error {
		return s.publisher.Send(r.Context(), string(body))
	}); err != nil {
		s.logger.Error("enqueueing task failed", "task_id", task.ID, "error", err)
		task.Status = models.StatusError
		task.ErrorMessage = "Failed to enqueue task"
		s.saveAndRedirect(w, r, task)
		return
	}

	s.logger.Info("task submitted", "task_id", task.ID, "title", title)
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (s *Server) saveAndRedirect(w http.ResponseWriter, r *http.Request, task *models.Task) {
	if err := s.tasks.Save(r.Context(), task); err != nil {
		s.logger.Error("persisting task failed", "task_id", task.ID, "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		s.logger.Error("listing tasks failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	if err := s.templates.ExecuteTemplate(w, "task_list.html", map[string]any{"Tasks": tasks}); err != nil {
		s.logger.Error("rendering task list failed", "error", err)
	}
}

func (s *Server) handleTasksJSON(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		s.logger.Error("listing tasks failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tasks); err != nil {
		s.logger.Error("encoding task list failed", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.collector.Snapshot()); err != nil {
		s.logger.Error("encoding stats failed", "error", err)
	}
}
