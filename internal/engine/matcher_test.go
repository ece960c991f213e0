package engine

import (
	"context"
	"testing"
	"time"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestNewMatcher_Validation(t *testing.T) {
	t.Run("nil service panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("NewMatcher with nil service should panic")
			}
		}()
		NewMatcher(nil, discardLogger())
	})

	t.Run("config is clamped", func(t *testing.T) {
		svc, _ := newTestService(t)
		m := NewMatcher(svc, nil, MatcherConfig{PollInterval: -1, PassTimeout: 0})
		if m.config.PollInterval != DefaultMatcherConfig.PollInterval {
			t.Errorf("PollInterval = %s, want default", m.config.PollInterval)
		}
		if m.config.PassTimeout != DefaultMatcherConfig.PassTimeout {
			t.Errorf("PassTimeout = %s, want default", m.config.PassTimeout)
		}
	})
}

func TestMatcher_FirstPassRunsImmediately(t *testing.T) {
	svc, feed := newTestService(t)
	feed.SetPrice("sh600000", dec("9.60"))
	order, err := svc.Buy(context.Background(), "sh600000", dec("9.50"), 200, trading(10, 0))
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	// By the time the matcher starts the market has crossed the limit.
	feed.SetPrice("sh600000", dec("9.45"))

	// An hour-long interval proves the startup pass does the work.
	m := NewMatcher(svc, discardLogger(), MatcherConfig{
		PollInterval: time.Hour,
		PassTimeout:  time.Second,
	})
	m.nowFn = func() time.Time { return trading(10, 5) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return svc.PendingCount() == 0 })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("matcher did not stop after cancel")
	}

	got := svc.Orders(models.StatusFilled)
	if len(got) != 1 || got[0].ID != order.ID {
		t.Fatalf("filled orders = %v, want just %s", got, order.ID)
	}
	if !svc.AvailableCash().Equal(dec("98094.981")) {
		t.Errorf("cash = %s, want 98094.981", svc.AvailableCash())
	}
}

func TestMatcher_TickerDrainsQueue(t *testing.T) {
	svc, feed := newTestService(t)
	feed.SetPrice("sh600000", dec("9.60"))
	order, err := svc.Buy(context.Background(), "sh600000", dec("9.50"), 200, trading(10, 0))
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	m := NewMatcher(svc, discardLogger(), MatcherConfig{
		PollInterval: 10 * time.Millisecond,
		PassTimeout:  time.Second,
	})
	m.nowFn = func() time.Time { return trading(10, 5) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// The startup pass sees 9.60 and misses; a later tick sees 9.45.
	feed.SetPrice("sh600000", dec("9.45"))

	waitFor(t, 2*time.Second, func() bool { return svc.PendingCount() == 0 })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("matcher did not stop after cancel")
	}

	if got := svc.Orders(models.StatusFilled); len(got) != 1 || got[0].ID != order.ID {
		t.Fatalf("filled orders = %v, want just %s", got, order.ID)
	}
}
