package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/charlesng35/introhub/pkg/metrics"
)

// JobStatus summarises the run history of one background job.
type JobStatus struct {
	Job                 string    `json:"job"`
	TotalRuns           uint64    `json:"total_runs"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
	LastDuration        float64   `json:"last_duration_seconds"`
}

// JobTracker records background job outcomes for health probes and metrics.
// A nil tracker discards everything.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
	now  func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobStatus), now: time.Now}
}

// Expect registers a job before its first run so probes can report it as pending.
func (t *JobTracker) Expect(job string) {
	if t == nil || job == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job]; !ok {
		t.jobs[job] = &JobStatus{Job: job}
	}
}

// RecordRun stores the outcome of a single job execution.
func (t *JobTracker) RecordRun(job string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()

	if t == nil || job == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.jobs[job]
	if !ok {
		status = &JobStatus{Job: job}
		t.jobs[job] = status
	}
	status.TotalRuns++
	status.LastRunAt = t.now().UTC()
	status.LastDuration = duration.Seconds()
	if err != nil {
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		return
	}
	status.ConsecutiveFailures = 0
	status.LastError = ""
}

// Snapshot returns a copy of every job status ordered by name.
func (t *JobTracker) Snapshot() []JobStatus {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobStatus, 0, len(t.jobs))
	for _, status := range t.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
