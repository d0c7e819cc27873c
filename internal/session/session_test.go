package session

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Unix(1000, 0)}
}

func (f *fakeClock) Now() time.Time { return f.current }

func (f *fakeClock) Advance(d time.Duration) { f.current = f.current.Add(d) }

type memStore struct {
	values map[string]float64
	getErr error
	setErr error
	sets   int
}

func newMemStore() *memStore {
	return &memStore{values: map[string]float64{}}
}

func (m *memStore) Get(_ context.Context, key string) (float64, bool, error) {
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, rate float64) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.values[key] = rate
	return nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestStartOnFirstClick(t *testing.T) {
	clock := newFakeClock()
	s := New(5*time.Second, clock, nil)

	if s.Phase() != PhaseIdle {
		t.Fatalf("expected idle phase, got %v", s.Phase())
	}
	s.RegisterClick()
	if s.Phase() != PhaseRunning {
		t.Fatalf("expected running phase after first click, got %v", s.Phase())
	}
	if s.Clicks() != 1 {
		t.Fatalf("expected first click to count, got %d", s.Clicks())
	}
	if got := s.Remaining(clock.Now()); got != 5*time.Second {
		t.Fatalf("expected full duration remaining at start, got %v", got)
	}
}

func TestFinalRateUsesConfiguredDuration(t *testing.T) {
	clock := newFakeClock()
	s := New(5*time.Second, clock, nil)

	for i := 0; i < 12; i++ {
		s.RegisterClick()
	}
	// The tick that observes the zero-crossing arrives late; the
	// denominator must stay the configured duration.
	clock.Advance(5*time.Second + 137*time.Millisecond)
	finished, err := s.Tick(context.Background(), clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !finished {
		t.Fatalf("expected tick to finish the run")
	}
	snap := s.Snapshot(clock.Now())
	if !snap.HasFinal || !almostEqual(snap.FinalRate, 2.40) {
		t.Fatalf("expected final rate 2.40, got %v (has=%v)", snap.FinalRate, snap.HasFinal)
	}
}

func TestLiveRate(t *testing.T) {
	clock := newFakeClock()
	s := New(5*time.Second, clock, nil)

	for i := 0; i < 5; i++ {
		s.RegisterClick()
	}
	clock.Advance(2 * time.Second)
	snap := s.Snapshot(clock.Now())
	if !almostEqual(snap.LiveRate, 2.50) {
		t.Fatalf("expected live rate 2.50 at the 2s mark, got %v", snap.LiveRate)
	}

	// No elapsed time yet: live rate is defined as zero.
	s.Reset(5 * time.Second)
	s.RegisterClick()
	snap = s.Snapshot(clock.Now())
	if snap.LiveRate != 0 {
		t.Fatalf("expected zero live rate with zero elapsed, got %v", snap.LiveRate)
	}
}

func TestExpireIdempotent(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	s := New(5*time.Second, clock, store)

	s.RegisterClick()
	s.RegisterClick()
	clock.Advance(5 * time.Second)

	if err := s.Expire(context.Background()); err != nil {
		t.Fatalf("expire: %v", err)
	}
	first := s.Snapshot(clock.Now())
	if err := s.Expire(context.Background()); err != nil {
		t.Fatalf("second expire: %v", err)
	}
	second := s.Snapshot(clock.Now())
	if first != second {
		t.Fatalf("expected expire to be idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
	if store.sets != 1 {
		t.Fatalf("expected exactly one store write, got %d", store.sets)
	}
}

func TestDiscardClicksAfterFinish(t *testing.T) {
	clock := newFakeClock()
	s := New(5*time.Second, clock, nil)

	s.RegisterClick()
	clock.Advance(5 * time.Second)
	if _, err := s.Tick(context.Background(), clock.Now()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	before := s.Snapshot(clock.Now())
	s.RegisterClick()
	after := s.Snapshot(clock.Now())
	if before != after {
		t.Fatalf("expected late click to be discarded:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestStaleTickIsNoOp(t *testing.T) {
	clock := newFakeClock()
	s := New(5*time.Second, clock, nil)

	s.RegisterClick()
	s.Reset(5 * time.Second)

	// A tick scheduled before the reset fires afterwards.
	clock.Advance(10 * time.Second)
	finished, err := s.Tick(context.Background(), clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if finished {
		t.Fatalf("expected stale tick to be a no-op")
	}
	if s.Phase() != PhaseIdle {
		t.Fatalf("expected session to stay idle, got %v", s.Phase())
	}
}

func TestResetClearsState(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	store.values[BestKey] = 7.5
	s := New(5*time.Second, clock, store)
	if err := s.LoadBest(context.Background()); err != nil {
		t.Fatalf("load best: %v", err)
	}

	s.RegisterClick()
	clock.Advance(5 * time.Second)
	if err := s.Expire(context.Background()); err != nil {
		t.Fatalf("expire: %v", err)
	}

	s.Reset(60 * time.Second)
	snap := s.Snapshot(clock.Now())
	if snap.Phase != PhaseIdle || snap.Clicks != 0 || snap.HasFinal {
		t.Fatalf("expected reset to clear run state, got %+v", snap)
	}
	if snap.Duration != 60*time.Second {
		t.Fatalf("expected duration 60s after reset, got %v", snap.Duration)
	}
	if !snap.HasBest || !almostEqual(snap.BestRate, 7.5) {
		t.Fatalf("expected best rate to survive reset, got %+v", snap)
	}
}

func TestPresetSwitchWhileIdle(t *testing.T) {
	clock := newFakeClock()
	s := New(5*time.Second, clock, nil)

	s.Reset(60 * time.Second)
	if s.Phase() != PhaseIdle {
		t.Fatalf("expected session to remain idle, got %v", s.Phase())
	}
	if s.Duration() != 60*time.Second {
		t.Fatalf("expected duration 60s, got %v", s.Duration())
	}
}

func TestBestRateMonotonic(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	s := New(5*time.Second, clock, store)
	if err := s.LoadBest(context.Background()); err != nil {
		t.Fatalf("load best: %v", err)
	}

	run := func(clicks int) {
		s.Reset(5 * time.Second)
		for i := 0; i < clicks; i++ {
			s.RegisterClick()
		}
		if clicks == 0 {
			// A zero-click run never leaves Idle on its own; drive the
			// transition so the finalizer still runs.
			s.RegisterClick()
			s.clicks = 0
		}
		clock.Advance(5 * time.Second)
		if err := s.Expire(context.Background()); err != nil {
			t.Fatalf("expire: %v", err)
		}
	}

	rates := []int{10, 25, 0, 15}
	best := 0.0
	for _, clicks := range rates {
		run(clicks)
		rate := float64(clicks) / 5.0
		if rate > best {
			best = rate
		}
		snap := s.Snapshot(clock.Now())
		if !almostEqual(snap.BestRate, best) {
			t.Fatalf("expected best %v after %d-click run, got %v", best, clicks, snap.BestRate)
		}
		if got := store.values[BestKey]; !almostEqual(got, best) {
			t.Fatalf("expected persisted best %v, got %v", best, got)
		}
	}
}

func TestZeroClickRunBecomesBestWhenAbsent(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	s := New(10*time.Second, clock, store)
	if err := s.LoadBest(context.Background()); err != nil {
		t.Fatalf("load best: %v", err)
	}

	s.RegisterClick()
	s.clicks = 0
	clock.Advance(10 * time.Second)
	if err := s.Expire(context.Background()); err != nil {
		t.Fatalf("expire: %v", err)
	}
	snap := s.Snapshot(clock.Now())
	if !snap.HasFinal || snap.FinalRate != 0 {
		t.Fatalf("expected final rate 0.00, got %+v", snap)
	}
	if !snap.HasBest || snap.BestRate != 0 {
		t.Fatalf("expected absent best to become 0.00, got %+v", snap)
	}
}

func TestStoreFailureDoesNotBlockResult(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	store.getErr = errors.New("db locked")
	store.setErr = errors.New("db locked")
	s := New(5*time.Second, clock, store)

	if err := s.LoadBest(context.Background()); err == nil {
		t.Fatalf("expected load error to be reported")
	}
	for i := 0; i < 12; i++ {
		s.RegisterClick()
	}
	clock.Advance(5 * time.Second)
	finished, err := s.Tick(context.Background(), clock.Now())
	if !finished {
		t.Fatalf("expected run to finish despite store failure")
	}
	if err == nil {
		t.Fatalf("expected store write error to surface")
	}
	snap := s.Snapshot(clock.Now())
	if !snap.HasFinal || !almostEqual(snap.FinalRate, 2.40) {
		t.Fatalf("expected final rate 2.40 despite store failure, got %+v", snap)
	}
}
