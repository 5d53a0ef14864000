// services/event_policy.go
package services

import (
	"log"
	"os"
	"strconv"
	"time"
)

// EventPolicy supplies the wall-clock rules the submission engine is
// deliberately decoupled from: how long a user has to wait after a rejection,
// and how much the daily frenzy window inflates awarded points. Now is
// injectable so tests can pin the clock.
type EventPolicy struct {
	BaseWindow   time.Duration
	FrenzyWindow time.Duration

	// Frenzy interval as hours of day, [FrenzyStartHour, FrenzyEndHour).
	FrenzyStartHour int
	FrenzyEndHour   int

	FresherMultiplier float64
	SeniorMultiplier  float64

	Now func() time.Time
}

// NewEventPolicyFromEnv reads the marathon schedule from the environment,
// falling back to the defaults used on event night: 5 minute cooldown, 2
// minutes during the 20:00-22:00 frenzy, with a 2x fresher / 1.5x senior
// point boost.
func NewEventPolicyFromEnv() *EventPolicy {
	p := &EventPolicy{
		BaseWindow:        envDuration("RATE_LIMIT_MINUTES", 5),
		FrenzyWindow:      envDuration("FRENZY_RATE_LIMIT_MINUTES", 2),
		FrenzyStartHour:   envInt("FRENZY_START_HOUR", 20),
		FrenzyEndHour:     envInt("FRENZY_END_HOUR", 22),
		FresherMultiplier: envFloat("FRENZY_FRESHER_MULTIPLIER", 2.0),
		SeniorMultiplier:  envFloat("FRENZY_SENIOR_MULTIPLIER", 1.5),
		Now:               time.Now,
	}
	log.Printf("⏱️ [POLICY] cooldown=%s frenzy=%s window=%02d:00-%02d:00",
		p.BaseWindow, p.FrenzyWindow, p.FrenzyStartHour, p.FrenzyEndHour)
	return p
}

func (p *EventPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// InFrenzy reports whether t falls inside the scheduled frenzy interval.
// The interval may wrap midnight (start hour > end hour).
func (p *EventPolicy) InFrenzy(t time.Time) bool {
	h := t.Hour()
	if p.FrenzyStartHour == p.FrenzyEndHour {
		return false
	}
	if p.FrenzyStartHour < p.FrenzyEndHour {
		return h >= p.FrenzyStartHour && h < p.FrenzyEndHour
	}
	return h >= p.FrenzyStartHour || h < p.FrenzyEndHour
}

// RateLimitWindow returns the cooldown applied after a rejected attempt.
func (p *EventPolicy) RateLimitWindow(t time.Time) time.Duration {
	if p.InFrenzy(t) {
		return p.FrenzyWindow
	}
	return p.BaseWindow
}

// PointsMultiplier returns the factor applied to awarded points. Outside the
// frenzy window everyone gets 1.0; inside it freshers get the bigger boost.
func (p *EventPolicy) PointsMultiplier(t time.Time, isSenior bool) float64 {
	if !p.InFrenzy(t) {
		return 1.0
	}
	if isSenior {
		return p.SeniorMultiplier
	}
	return p.FresherMultiplier
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallbackMinutes int) time.Duration {
	return time.Duration(envInt(key, fallbackMinutes)) * time.Minute
}
