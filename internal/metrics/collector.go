// Package metrics provides in-memory runtime statistics for pipeline stages.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Stage names recorded by the worker.
const (
	OpValidate  = "validate"
	OpDownload  = "download"
	OpTranscode = "transcode"
	OpRecognize = "recognize"
	OpSummarize = "summarize"
	OpRender    = "render"
	OpPersist   = "persist"
	OpTask      = "task" // full pipeline, one entry per attempt

	// Submission-side stages, recorded by the server.
	OpEnqueue = "enqueue"
)

// StageMetrics holds aggregated timings for a single stage.
type StageMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// StageSnapshot provides computed stats from raw metrics.
type StageSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot is the full worker statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                  `json:"uptime_seconds"`
	Stages        map[string]StageSnapshot `json:"stages"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	stages    map[string]*StageMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		stages:    make(map[string]*StageMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for a stage.
// Caller must hold the write lock.
func (c *Collector) getOrCreate(stage string) *StageMetrics {
	m, ok := c.stages[stage]
	if !ok {
		m = &StageMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.stages[stage] = m
	}
	return m
}

// Record registers one stage execution with its duration and outcome.
func (c *Collector) Record(stage string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(stage)
	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// Observe wraps a stage call, recording its duration and outcome.
func (c *Collector) Observe(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.Record(stage, time.Since(start), err != nil)
	return err
}

// Snapshot returns a point-in-time copy of all stage metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Stages:        make(map[string]StageSnapshot, len(c.stages)),
	}
	for stage, m := range c.stages {
		if m.Count == 0 {
			continue
		}
		snap.Stages[stage] = StageSnapshot{
			Count:       m.Count,
			Failures:    m.Failures,
			TotalTimeMs: m.TotalTime.Milliseconds(),
			AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
			MinTimeMs:   m.MinTime.Milliseconds(),
			MaxTimeMs:   m.MaxTime.Milliseconds(),
		}
	}
	return snap
}
