package models

import (
	"testing"
	"time"
)

func TestCreatedTime(t *testing.T) {
	tests := []struct {
		name      string
		createdAt string
		wantZero  bool
	}{
		{"valid", "2024-03-01 12:30:00", false},
		{"empty", "", true},
		{"garbage", "not-a-date", true},
		{"wrong layout", "2024/03/01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{CreatedAt: tt.createdAt}
			got := task.CreatedTime()
			if got.IsZero() != tt.wantZero {
				t.Errorf("CreatedTime(%q).IsZero() = %v, want %v", tt.createdAt, got.IsZero(), tt.wantZero)
			}
		})
	}
}

func TestNewCreatedAtRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	task := Task{CreatedAt: NewCreatedAt(now)}

	if task.CreatedAt != "2024-03-01 12:30:00" {
		t.Fatalf("NewCreatedAt = %q, want display timezone offset applied", task.CreatedAt)
	}
	if !task.CreatedTime().Equal(now) {
		t.Errorf("round trip lost the instant: got %v, want %v", task.CreatedTime(), now)
	}
}

func TestSortByCreatedDesc(t *testing.T) {
	tasks := []Task{
		{ID: 1, CreatedAt: "2024-03-01 10:00:00"},
		{ID: 2, CreatedAt: "broken"},
		{ID: 3, CreatedAt: "2024-03-02 10:00:00"},
		{ID: 4, CreatedAt: "2024-03-01 18:00:00"},
	}

	SortByCreatedDesc(tasks)

	wantOrder := []int64{3, 4, 1, 2}
	for i, want := range wantOrder {
		if tasks[i].ID != want {
			t.Fatalf("position %d: got task %d, want %d (order %v)", i, tasks[i].ID, want, tasks)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, tt := range []struct {
		status TaskStatus
		want   bool
	}{
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusError, true},
	} {
		task := Task{Status: tt.status}
		if task.Terminal() != tt.want {
			t.Errorf("Terminal() for %q = %v, want %v", tt.status, task.Terminal(), tt.want)
		}
	}
}
