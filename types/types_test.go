package types

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestCheckedArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		op     func() (int64, bool)
		want   int64
		wantOK bool
	}{
		{"Add", func() (int64, bool) { return CheckedAdd(100, 200) }, 300, true},
		{"Add negative", func() (int64, bool) { return CheckedAdd(100, -200) }, -100, true},
		{"Add overflow", func() (int64, bool) { return CheckedAdd(math.MaxInt64, 1) }, 0, false},
		{"Add underflow", func() (int64, bool) { return CheckedAdd(math.MinInt64, -1) }, 0, false},
		{"Sub", func() (int64, bool) { return CheckedSub(500, 200) }, 300, true},
		{"Sub overflow", func() (int64, bool) { return CheckedSub(math.MaxInt64, -1) }, 0, false},
		{"Sub underflow", func() (int64, bool) { return CheckedSub(math.MinInt64, 1) }, 0, false},
		{"Sum", func() (int64, bool) { return Sum(1, 2, 3, 4) }, 10, true},
		{"Sum empty", func() (int64, bool) { return Sum() }, 0, true},
		{"Sum overflow", func() (int64, bool) { return Sum(math.MaxInt64, 1, -1) }, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.op()
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNonDecreasing(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	readings := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second), base.Add(-time.Minute)}
	i := 0
	clock := NonDecreasing(ClockFunc(func() time.Time {
		r := readings[i]
		i++
		return r
	}))

	want := []time.Time{base, base, base.Add(time.Second), base.Add(time.Second)}
	for n, w := range want {
		if got := clock.Now(); !got.Equal(w) {
			t.Errorf("reading %d: got %v, want %v", n, got, w)
		}
	}
}

func TestNonDecreasingConcurrent(t *testing.T) {
	clock := NonDecreasing(SystemClock())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := clock.Now()
			for range 1000 {
				now := clock.Now()
				if now.Before(prev) {
					t.Errorf("clock went backwards: %v after %v", now, prev)
					return
				}
				prev = now
			}
		}()
	}
	wg.Wait()
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 02:30 local on the 2nd is 21:30 UTC on the 1st.
	start, end := DayBounds(time.Date(2024, 3, 2, 2, 30, 0, 0, loc))

	wantStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start: got %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end: got %v, want %v", end, wantEnd)
	}
}
