package resilience

import (
	"errors"
	"testing"
	"time"
)

func transientErr() error {
	return errors.New("api: unexpected status 503")
}

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, Cooldown: cooldown})
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow() before threshold = %v", err)
		}
		b.Record(transientErr())
	}
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	b.Record(transientErr())
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Allow() on open breaker = %v, want ErrBreakerOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.Record(transientErr())
	b.Record(transientErr())
	b.Record(nil)
	b.Record(transientErr())
	b.Record(transientErr())

	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %v, want closed after reset", got)
	}
}

func TestBreakerIgnoresNonTransientFailures(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	b.Record(errors.New("api: unexpected status 401"))
	b.Record(errors.New("api: unexpected status 401"))
	b.Record(errors.New("api: unexpected status 401"))

	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %v, want closed for non-transient failures", got)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	b.Record(transientErr())
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Allow() during cooldown = %v, want ErrBreakerOpen", err)
	}

	*now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown = %v, want probe allowed", err)
	}

	// Probe failure reopens immediately, regardless of the threshold.
	b.Record(transientErr())
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Allow() after failed probe = %v, want ErrBreakerOpen", err)
	}

	// A successful probe closes the breaker.
	*now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() for second probe = %v", err)
	}
	b.Record(nil)
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after successful probe = %v, want closed", got)
	}
}

func TestBreakerSetIsolatesProviders(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	set.Get("openai").Record(transientErr())

	if err := set.Get("openai").Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("openai breaker should be open, got %v", err)
	}
	if err := set.Get("mistral").Allow(); err != nil {
		t.Fatalf("mistral breaker should be unaffected, got %v", err)
	}
	if a, b := set.Get("openai"), set.Get("openai"); a != b {
		t.Fatal("Get should return the same breaker per provider")
	}
}

func TestBreakerStateString(t *testing.T) {
	for state, want := range map[BreakerState]string{
		BreakerClosed:   "closed",
		BreakerOpen:     "open",
		BreakerHalfOpen: "half-open",
	} {
		if got := state.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", state, got, want)
		}
	}
}
