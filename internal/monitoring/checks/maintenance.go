package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/introhub/internal/monitoring"
)

const defaultMaintenanceMaxAge = 26 * time.Hour

// Maintenance verifies that cleanup jobs keep succeeding. Jobs that failed
// three times in a row mark the component down; a job that has not run within
// maxAge only degrades it. Zero maxAge selects a window just above one day.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var notes []string
		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures >= 3:
				status = monitoring.WorstStatus(status, monitoring.StatusDown)
				notes = append(notes, job.Job+": "+job.LastError)
			case job.ConsecutiveFailures > 0:
				status = monitoring.WorstStatus(status, monitoring.StatusDegraded)
				notes = append(notes, job.Job+": "+job.LastError)
			case now.Sub(job.LastRunAt) > maxAge:
				status = monitoring.WorstStatus(status, monitoring.StatusDegraded)
				notes = append(notes, job.Job+": stale run "+job.LastRunAt.Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; ")}
	})
}
