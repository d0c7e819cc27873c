// Package session implements the tap test timing core.
package session

import (
	"context"
	"time"
)

// Phase is the lifecycle state of a test run.
type Phase int

// Phases of a run. A run starts Idle, enters Running on the first tap,
// and becomes Finished when the countdown reaches zero.
const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// Clock supplies the time readings used to anchor and sample a run.
// Swapped for a fake clock in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by time.Now.
func RealClock() Clock { return realClock{} }

// ScoreStore persists a single rate value under a key.
type ScoreStore interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, rate float64) error
}

// BestKey is the storage key for the all-time best rate.
const BestKey = "best_cps"

// Session tracks one tap test run: the countdown anchor, the click count,
// and the finalized rate. Remaining time is always derived from the anchor
// timestamp, never accumulated tick by tick.
type Session struct {
	clock Clock
	store ScoreStore

	duration  time.Duration
	phase     Phase
	startedAt time.Time
	clicks    int

	finalRate float64
	hasFinal  bool

	bestRate float64
	hasBest  bool
}

// Snapshot is the observable state handed to the presentation layer.
type Snapshot struct {
	Phase     Phase
	Duration  time.Duration
	Remaining time.Duration
	Clicks    int
	LiveRate  float64
	FinalRate float64
	HasFinal  bool
	BestRate  float64
	HasBest   bool
}

// New creates an idle session for the given positive duration. The store
// may be nil, in which case best-score tracking is disabled.
func New(duration time.Duration, clock Clock, store ScoreStore) *Session {
	return &Session{
		clock:    clock,
		store:    store,
		duration: duration,
		phase:    PhaseIdle,
	}
}

// LoadBest reads the persisted best rate. A read failure leaves the best
// absent; the session stays fully usable.
func (s *Session) LoadBest(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	rate, ok, err := s.store.Get(ctx, BestKey)
	if err != nil {
		return err
	}
	if ok {
		s.bestRate = rate
		s.hasBest = true
	}
	return nil
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase { return s.phase }

// Duration returns the configured test duration.
func (s *Session) Duration() time.Duration { return s.duration }

// Clicks returns the number of taps registered so far.
func (s *Session) Clicks() int { return s.clicks }

// RegisterClick records one tap. The tap that arrives while idle starts
// the clock and counts as tap #1 in the same step, so no observer can see
// a running session with zero clicks. Taps after the countdown has
// finished are discarded so late input cannot corrupt the final score.
func (s *Session) RegisterClick() {
	switch s.phase {
	case PhaseFinished:
		return
	case PhaseIdle:
		s.startedAt = s.clock.Now()
		s.phase = PhaseRunning
		s.finalRate = 0
		s.hasFinal = false
	}
	s.clicks++
}

// Remaining returns the time left at the given instant, clamped to zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	switch s.phase {
	case PhaseIdle:
		return s.duration
	case PhaseFinished:
		return 0
	}
	remaining := s.duration - now.Sub(s.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Tick samples the clock and finalizes the run once the countdown reaches
// zero. It reports whether this tick finished the run. Ticks outside the
// Running phase are no-ops so a stale callback can never act on a reset
// or already-finished session. The returned error is a best-score write
// failure; the in-session result is valid regardless.
func (s *Session) Tick(ctx context.Context, now time.Time) (bool, error) {
	if s.phase != PhaseRunning {
		return false, nil
	}
	if s.Remaining(now) > 0 {
		return false, nil
	}
	return true, s.Expire(ctx)
}

// Expire finalizes a running session: the final rate uses the configured
// duration as denominator, so a late tick cannot skew the result, and the
// persisted best is raised when beaten. Calling Expire again once the
// session is finished is a no-op.
func (s *Session) Expire(ctx context.Context) error {
	if s.phase != PhaseRunning {
		return nil
	}
	s.phase = PhaseFinished
	s.finalRate = float64(s.clicks) / s.duration.Seconds()
	s.hasFinal = true
	if s.hasBest && s.finalRate <= s.bestRate {
		return nil
	}
	s.bestRate = s.finalRate
	s.hasBest = true
	if s.store == nil {
		return nil
	}
	return s.store.Set(ctx, BestKey, s.bestRate)
}

// Reset returns the session to Idle with the given duration, clearing the
// click count and final rate. The best rate is untouched. Non-positive
// durations keep the current one.
func (s *Session) Reset(duration time.Duration) {
	if duration > 0 {
		s.duration = duration
	}
	s.phase = PhaseIdle
	s.startedAt = time.Time{}
	s.clicks = 0
	s.finalRate = 0
	s.hasFinal = false
}

// Snapshot captures the observable state at the given instant. The live
// rate is defined while Running as clicks over elapsed seconds, and zero
// before any time has elapsed.
func (s *Session) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Phase:     s.phase,
		Duration:  s.duration,
		Remaining: s.Remaining(now),
		Clicks:    s.clicks,
		FinalRate: s.finalRate,
		HasFinal:  s.hasFinal,
		BestRate:  s.bestRate,
		HasBest:   s.hasBest,
	}
	if s.phase == PhaseRunning {
		elapsed := (s.duration - snap.Remaining).Seconds()
		if elapsed > 0 {
			snap.LiveRate = float64(s.clicks) / elapsed
		}
	}
	return snap
}
