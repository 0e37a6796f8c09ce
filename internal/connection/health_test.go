package connection

import (
	"testing"
	"time"
)

func TestClassifyHealth(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		connected  bool
		lastUpdate time.Time
		want       Health
	}{
		{"disconnected", false, now, HealthUnhealthy},
		{"disconnected never updated", false, time.Time{}, HealthUnhealthy},
		{"connected never updated", true, time.Time{}, HealthDegraded},
		{"fresh", true, now.Add(-time.Second), HealthHealthy},
		{"exactly 5s", true, now.Add(-5 * time.Second), HealthHealthy},
		{"6s gap", true, now.Add(-6 * time.Second), HealthDegraded},
		{"exactly 10s", true, now.Add(-10 * time.Second), HealthDegraded},
		{"11s gap", true, now.Add(-11 * time.Second), HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyHealth(tt.connected, tt.lastUpdate, now); got != tt.want {
				t.Errorf("ClassifyHealth() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHealthThresholds_Custom(t *testing.T) {
	h := HealthThresholds{Degraded: time.Second, Unhealthy: 2 * time.Second}
	now := time.Now()

	if got := h.Classify(true, now.Add(-1500*time.Millisecond), now); got != HealthDegraded {
		t.Errorf("Classify(1.5s) = %q, want degraded", got)
	}
	if got := h.Classify(true, now.Add(-3*time.Second), now); got != HealthUnhealthy {
		t.Errorf("Classify(3s) = %q, want unhealthy", got)
	}
}
