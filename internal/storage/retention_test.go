package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	oldID, _ := s.Put(ctx, Blob{Data: []byte("old")})
	clock = base.Add(2 * time.Hour)
	newID, _ := s.Put(ctx, Blob{Data: []byte("new")})

	removed, err := s.Sweep(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, err := s.Get(ctx, oldID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old blob still present: %v", err)
	}
	if _, err := s.Get(ctx, newID); err != nil {
		t.Errorf("new blob removed: %v", err)
	}
}

type countingSweeper struct {
	calls   chan time.Time
	removed int
	err     error
}

func (c *countingSweeper) Sweep(ctx context.Context, before time.Time) (int, error) {
	select {
	case c.calls <- before:
	default:
	}
	return c.removed, c.err
}

func TestRunRetention_SweepsUntilCancelled(t *testing.T) {
	sw := &countingSweeper{calls: make(chan time.Time, 16), removed: 2}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunRetention(ctx, sw, RetentionConfig{MaxAge: time.Hour, Interval: 5 * time.Millisecond})
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case before := <-sw.calls:
			if age := time.Since(before); age < time.Hour || age > time.Hour+time.Minute {
				t.Errorf("cutoff is %v in the past, want about 1h", age)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d did not run", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunRetention did not stop after cancel")
	}
}

func TestRunRetention_Disabled(t *testing.T) {
	sw := &countingSweeper{calls: make(chan time.Time, 1)}
	RunRetention(context.Background(), sw, RetentionConfig{})

	select {
	case <-sw.calls:
		t.Error("disabled retention should not sweep")
	default:
	}
}

func TestSweepOnce_ErrorIsNotFatal(t *testing.T) {
	sw := &countingSweeper{calls: make(chan time.Time, 1), err: errors.New("db down")}
	sweepOnce(context.Background(), sw, time.Hour, time.Now)
	if len(sw.calls) != 1 {
		t.Errorf("sweep calls = %d, want 1", len(sw.calls))
	}
}
