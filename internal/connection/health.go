package connection

import "time"

// Health classifies how fresh the feed is.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// HealthThresholds are the gaps since the last update after which the feed
// counts as degraded or unhealthy.
type HealthThresholds struct {
	Degraded  time.Duration
	Unhealthy time.Duration
}

// DefaultHealthThresholds returns 5s degraded, 10s unhealthy.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		Degraded:  5 * time.Second,
		Unhealthy: 10 * time.Second,
	}
}

// Classify maps connection state and last update time to a Health value.
// A connected feed that has not delivered anything yet is degraded.
func (h HealthThresholds) Classify(connected bool, lastUpdate, now time.Time) Health {
	if !connected {
		return HealthUnhealthy
	}
	if lastUpdate.IsZero() {
		return HealthDegraded
	}

	gap := now.Sub(lastUpdate)
	switch {
	case gap > h.Unhealthy:
		return HealthUnhealthy
	case gap > h.Degraded:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// ClassifyHealth applies the default thresholds.
func ClassifyHealth(connected bool, lastUpdate, now time.Time) Health {
	return DefaultHealthThresholds().Classify(connected, lastUpdate, now)
}
