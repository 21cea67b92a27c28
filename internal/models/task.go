// Package models defines the task record tracked through the pipeline.
package models

import (
	"slices"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusError      TaskStatus = "error"
)

// CreatedAtLayout is the display format tasks are stored with.
const CreatedAtLayout = "2006-01-02 15:04:05"

// DisplayLocation is the fixed display timezone for CreatedAt (UTC+3, no DST).
var DisplayLocation = time.FixedZone("MSK", 3*60*60)

// LinkMetadata is the resolved result of share-link validation, as returned
// by the public disk metadata API. File must be non-empty before any
// downstream stage may run.
type LinkMetadata struct {
	Name string `json:"name,omitempty"`
	File string `json:"file,omitempty"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Task is the unit of work and the only persisted entity. Every write
// overwrites the full record; there are no field-level patches.
type Task struct {
	ID                int64         `json:"id"`
	Title             string        `json:"title"`
	CreatedAt         string        `json:"created_at"`
	Status            TaskStatus    `json:"status"`
	SourceURL         string        `json:"source_url"`
	Metadata          *LinkMetadata `json:"metadata"`
	ResultDocumentURL string        `json:"result_document_url,omitempty"`
	ErrorMessage      string        `json:"error_message,omitempty"`
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusError
}

// CreatedTime parses CreatedAt, returning the zero time for malformed values
// so that sorting never fails on a damaged record.
func (t *Task) CreatedTime() time.Time {
	ts, err := time.ParseInLocation(CreatedAtLayout, t.CreatedAt, DisplayLocation)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// NewCreatedAt formats the current moment in the display timezone.
func NewCreatedAt(now time.Time) string {
	return now.In(DisplayLocation).Format(CreatedAtLayout)
}

// SortByCreatedDesc orders tasks newest first. Records with unparseable
// timestamps sink to the end.
func SortByCreatedDesc(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return b.CreatedTime().Compare(a.CreatedTime())
	})
}
