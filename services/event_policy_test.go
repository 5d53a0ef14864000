package services_test

import (
	"testing"
	"time"

	"marathon-platform/services"

	"github.com/stretchr/testify/assert"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 30, 0, 0, time.UTC)
}

func TestInFrenzy(t *testing.T) {
	p := testPolicy(newTestClock(quietHour))

	tests := []struct {
		name string
		hour int
		want bool
	}{
		{name: "morning is quiet", hour: 10, want: false},
		{name: "start hour is inside", hour: 20, want: true},
		{name: "middle of window", hour: 21, want: true},
		{name: "end hour is outside", hour: 22, want: false},
		{name: "just before start", hour: 19, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.InFrenzy(at(tt.hour)))
		})
	}
}

func TestInFrenzyMidnightWrap(t *testing.T) {
	p := testPolicy(newTestClock(quietHour))
	p.FrenzyStartHour = 23
	p.FrenzyEndHour = 1

	assert.True(t, p.InFrenzy(at(23)))
	assert.True(t, p.InFrenzy(at(0)))
	assert.False(t, p.InFrenzy(at(1)))
	assert.False(t, p.InFrenzy(at(12)))
}

func TestInFrenzyDegenerateWindow(t *testing.T) {
	p := testPolicy(newTestClock(quietHour))
	p.FrenzyStartHour = 20
	p.FrenzyEndHour = 20

	for h := 0; h < 24; h++ {
		assert.False(t, p.InFrenzy(at(h)), "hour %d", h)
	}
}

func TestRateLimitWindow(t *testing.T) {
	p := testPolicy(newTestClock(quietHour))

	assert.Equal(t, 5*time.Minute, p.RateLimitWindow(at(10)))
	assert.Equal(t, 2*time.Minute, p.RateLimitWindow(at(21)))
}

func TestPointsMultiplier(t *testing.T) {
	p := testPolicy(newTestClock(quietHour))

	assert.Equal(t, 1.0, p.PointsMultiplier(at(10), false))
	assert.Equal(t, 1.0, p.PointsMultiplier(at(10), true))
	assert.Equal(t, 2.0, p.PointsMultiplier(at(21), false))
	assert.Equal(t, 1.5, p.PointsMultiplier(at(21), true))
}

func TestNewEventPolicyFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"RATE_LIMIT_MINUTES", "FRENZY_RATE_LIMIT_MINUTES",
		"FRENZY_START_HOUR", "FRENZY_END_HOUR",
		"FRENZY_FRESHER_MULTIPLIER", "FRENZY_SENIOR_MULTIPLIER",
	} {
		t.Setenv(key, "")
	}

	p := services.NewEventPolicyFromEnv()

	assert.Equal(t, 5*time.Minute, p.BaseWindow)
	assert.Equal(t, 2*time.Minute, p.FrenzyWindow)
	assert.Equal(t, 20, p.FrenzyStartHour)
	assert.Equal(t, 22, p.FrenzyEndHour)
	assert.Equal(t, 2.0, p.FresherMultiplier)
	assert.Equal(t, 1.5, p.SeniorMultiplier)
}

func TestNewEventPolicyFromEnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MINUTES", "10")
	t.Setenv("FRENZY_RATE_LIMIT_MINUTES", "1")
	t.Setenv("FRENZY_START_HOUR", "18")
	t.Setenv("FRENZY_END_HOUR", "23")
	t.Setenv("FRENZY_FRESHER_MULTIPLIER", "3.0")
	t.Setenv("FRENZY_SENIOR_MULTIPLIER", "1.25")

	p := services.NewEventPolicyFromEnv()

	assert.Equal(t, 10*time.Minute, p.BaseWindow)
	assert.Equal(t, time.Minute, p.FrenzyWindow)
	assert.Equal(t, 18, p.FrenzyStartHour)
	assert.Equal(t, 23, p.FrenzyEndHour)
	assert.Equal(t, 3.0, p.FresherMultiplier)
	assert.Equal(t, 1.25, p.SeniorMultiplier)
}
