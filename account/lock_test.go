package account

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockerExclusive(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "alice")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Errorf("expected at most one holder, saw %d", maxInside.Load())
	}
	if l.Len() != 0 {
		t.Errorf("expected lock table to drain, got %d entries", l.Len())
	}
}

func TestLockerDisjointKeys(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := l.Acquire(ctx, "bob")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different account blocked")
	}
}

func TestLockerCancelWhileWaiting(t *testing.T) {
	l := NewLocker()

	release, err := l.Acquire(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := l.Acquire(ctx, "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	release() // second call is a no-op

	if l.Len() != 0 {
		t.Errorf("expected lock table to drain, got %d entries", l.Len())
	}

	again, err := l.Acquire(context.Background(), "alice")
	if err != nil {
		t.Fatalf("reacquire after cancel: %v", err)
	}
	again()
}

func TestListOptsOrdering(t *testing.T) {
	a := &Balance{AccountID: "a", Balance: 10}
	b := &Balance{AccountID: "b", Balance: 20}
	c := &Balance{AccountID: "c", Balance: 10}

	tests := []struct {
		name string
		opts ListOpts
		x, y *Balance
		want bool
	}{
		{"desc higher first", ListOpts{}, b, a, true},
		{"desc lower second", ListOpts{}, a, b, false},
		{"desc tie by id", ListOpts{}, a, c, true},
		{"asc lower first", ListOpts{Order: OrderBalanceAsc}, a, b, true},
		{"by id", ListOpts{Order: OrderAccountID}, b, c, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Less(tt.x, tt.y); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListOptsMatches(t *testing.T) {
	opts := ListOpts{IDContains: "-group-", IDExcludes: "archived"}
	tests := map[string]bool{
		"team-group-1":          true,
		"alice":                 false,
		"old-group-archived-id": false,
	}
	for id, want := range tests {
		if got := opts.Matches(id); got != want {
			t.Errorf("Matches(%q): got %v, want %v", id, got, want)
		}
	}
}
