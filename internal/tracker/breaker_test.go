package tracker

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("tracker", BreakerConfig{Threshold: 3, Cooldown: 50 * time.Millisecond})

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("closed breaker rejected call %d: %v", i, err)
		}
		b.Failure()
	}
	if b.Open() {
		t.Fatal("breaker opened below threshold")
	}
	b.Allow()
	b.Failure()
	if !b.Open() {
		t.Fatal("breaker did not open at threshold")
	}

	// Every call inside the cooldown short-circuits.
	for i := 0; i < 5; i++ {
		if err := b.Allow(); err == nil {
			t.Fatalf("open breaker admitted call %d", i)
		}
	}
}

func TestBreakerAdmitsExactlyOneProbe(t *testing.T) {
	b := NewBreaker("tracker", BreakerConfig{Threshold: 1, Cooldown: 20 * time.Millisecond})
	b.Allow()
	b.Failure()
	if !b.Open() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(30 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe rejected after cooldown: %v", err)
	}
	// Only one probe until it resolves.
	if err := b.Allow(); err == nil {
		t.Fatal("second probe admitted while first unresolved")
	}

	b.Success()
	if b.Open() {
		t.Error("breaker should close after probe success")
	}
	if err := b.Allow(); err != nil {
		t.Errorf("closed breaker rejected call: %v", err)
	}
}

func TestBreakerProbeFailureExtendsCooldown(t *testing.T) {
	b := NewBreaker("tracker", BreakerConfig{Threshold: 1, Cooldown: 20 * time.Millisecond, MaxCooldown: time.Second})
	b.Allow()
	b.Failure()

	time.Sleep(30 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	b.Failure()

	// The original cooldown has doubled; the original window is not
	// enough anymore.
	time.Sleep(25 * time.Millisecond)
	if err := b.Allow(); err == nil {
		t.Fatal("breaker admitted call inside extended cooldown")
	}
	time.Sleep(25 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe rejected after extended cooldown: %v", err)
	}
	b.Success()
}

func TestBreakerRegistrySharesPerEndpoint(t *testing.T) {
	r := NewBreakerRegistry(BreakerConfig{})

	a1 := r.ForEndpoint("tracker-a")
	a2 := r.ForEndpoint("tracker-a")
	bb := r.ForEndpoint("tracker-b")

	if a1 != a2 {
		t.Error("same endpoint should share one breaker")
	}
	if a1 == bb {
		t.Error("different endpoints must not share a breaker")
	}
}
