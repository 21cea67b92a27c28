// Package store persists task records in the object store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/notegen/internal/models"
	"github.com/raphaelgruber/notegen/internal/storage"
)

// ErrNotFound indicates the requested task record does not exist.
var ErrNotFound = errors.New("task not found")

const (
	// taskKeyPrefix is the namespace all task records live under.
	taskKeyPrefix = "tasks/"

	taskKeyTemplate = "tasks/task_%d.json"
)

// TaskKey returns the object key for a task record.
func TaskKey(id int64) string {
	return fmt.Sprintf(taskKeyTemplate, id)
}

// Store reads and writes task records keyed by identifier. The object store
// is the sole source of truth; no copy is cached. Callers must ensure at most
// one writer per task is active at a time — single-consumer queue semantics
// provide that externally.
type Store struct {
	objects storage.ObjectStore
	logger  *slog.Logger
}

// New creates a task store over the given object store.
func New(objects storage.ObjectStore, logger *slog.Logger) *Store {
	return &Store{objects: objects, logger: logger}
}

// Save durably persists the full record, overwriting any prior version.
func (s *Store) Save(ctx context.Context, task *models.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %d: %w", task.ID, err)
	}
	if err := s.objects.Put(ctx, TaskKey(task.ID), body, "application/json"); err != nil {
		return fmt.Errorf("save task %d: %w", task.ID, err)
	}
	return nil
}

// Load returns the current record for id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id int64) (*models.Task, error) {
	body, err := s.objects.Get(ctx, TaskKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNoSuchKey) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}

	var task models.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("decode task %d: %w", id, err)
	}
	return &task, nil
}

// List returns every task record under the namespace, newest first.
// Malformed entries are logged and skipped rather than failing the listing;
// an empty or missing namespace yields an empty result.
func (s *Store) List(ctx context.Context) ([]models.Task, error) {
	keys, err := s.objects.List(ctx, taskKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		body, err := s.objects.Get(ctx, key)
		if err != nil {
			s.logger.Warn("skipping unreadable task record", "key", key, "error", err)
			continue
		}
		var task models.Task
		if err := json.Unmarshal(body, &task); err != nil {
			s.logger.Warn("skipping malformed task record", "key", key, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}

	models.SortByCreatedDesc(tasks)
	return tasks, nil
}
