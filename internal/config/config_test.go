package config

import (
	"testing"
	"time"
)

func TestPresenceTimeoutUsesMinutesField(t *testing.T) {
	cfg := Config{PresenceTimeoutMinutes: 7}
	if got, want := cfg.PresenceTimeout(), 7*time.Minute; got != want {
		t.Fatalf("PresenceTimeout() = %v, want %v", got, want)
	}
}

func TestClampNotificationLimit(t *testing.T) {
	cfg := Config{NotificationFetchCap: defaultNotificationFetchCap}

	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero passes through unchanged", 0, 0},
		{"negative passes through unchanged", -5, -5},
		{"within bound unchanged", 250, 250},
		{"at upper bound unchanged", 1000, 1000},
		{"above upper bound clamped", 5000, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfg.ClampNotificationLimit(tc.limit); got != tc.want {
				t.Fatalf("ClampNotificationLimit(%d) = %d, want %d", tc.limit, got, tc.want)
			}
		})
	}
}
