package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/introhub/internal/monitoring"
)

// RealtimeObserver exposes the state required to evaluate the notification stream.
type RealtimeObserver interface {
	Connections() int
}

// Realtime reports the notification stream hub. A missing hub only degrades
// the service because clients fall back to polling the inbox.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		if observer == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime hub unavailable"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d open streams", observer.Connections()),
		}
	})
}
