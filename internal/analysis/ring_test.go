package analysis

import (
	"testing"
	"time"
)

func TestSampleRingPushAndWrap(t *testing.T) {
	r := newSampleRing(4)
	base := time.Unix(0, 0)

	for i := 0; i < 6; i++ {
		r.push(base.Add(time.Duration(i)*time.Second), float64(i))
	}

	if r.len() != 4 {
		t.Fatalf("len = %d, want capacity 4 after overflow", r.len())
	}
	// Oldest two entries were overwritten; the ring holds 2, 3, 4, 5.
	for i := 0; i < 4; i++ {
		tm, v := r.at(i)
		want := float64(i + 2)
		if v != want {
			t.Errorf("at(%d) = %.0f, want %.0f", i, v, want)
		}
		if !tm.Equal(base.Add(time.Duration(i+2) * time.Second)) {
			t.Errorf("at(%d) time = %v, want %v", i, tm, base.Add(time.Duration(i+2)*time.Second))
		}
	}
}

func TestSampleRingDropBefore(t *testing.T) {
	r := newSampleRing(8)
	base := time.Unix(0, 0)
	for i := 0; i < 6; i++ {
		r.push(base.Add(time.Duration(i)*time.Second), float64(i))
	}

	r.dropBefore(base.Add(3 * time.Second))
	if r.len() != 3 {
		t.Fatalf("len = %d after drop, want 3", r.len())
	}
	if _, v := r.at(0); v != 3 {
		t.Errorf("oldest surviving value = %.0f, want 3", v)
	}

	// Cutoff equal to an entry's timestamp keeps that entry.
	r.dropBefore(base.Add(3 * time.Second))
	if r.len() != 3 {
		t.Errorf("repeated drop with same cutoff removed entries: len = %d", r.len())
	}
}

func TestSampleRingMean(t *testing.T) {
	r := newSampleRing(4)
	if r.mean() != 0 {
		t.Errorf("empty ring mean = %.4f, want 0", r.mean())
	}

	base := time.Unix(0, 0)
	for i, v := range []float64{1, 2, 3} {
		r.push(base.Add(time.Duration(i)*time.Second), v)
	}
	if got := r.mean(); got != 2 {
		t.Errorf("mean = %.4f, want 2", got)
	}

	// Mean follows the logical window after overflow: 2, 3, 4, 5.
	r.push(base.Add(3*time.Second), 4)
	r.push(base.Add(4*time.Second), 5)
	if got := r.mean(); got != 3.5 {
		t.Errorf("mean after wrap = %.4f, want 3.5", got)
	}
}

func TestSampleRingReset(t *testing.T) {
	r := newSampleRing(4)
	r.push(time.Unix(0, 0), 1)
	r.push(time.Unix(1, 0), 2)
	r.reset()

	if r.len() != 0 {
		t.Errorf("len = %d after reset, want 0", r.len())
	}
	r.push(time.Unix(2, 0), 7)
	if _, v := r.at(0); v != 7 {
		t.Errorf("push after reset: at(0) = %.0f, want 7", v)
	}
}

func TestTimeRingCountBetween(t *testing.T) {
	r := newTimeRing(8)
	base := time.Unix(0, 0)
	for i := 0; i < 6; i++ {
		r.push(base.Add(time.Duration(i) * time.Second))
	}

	tests := []struct {
		name     string
		from, to time.Duration
		want     int
	}{
		{"full span", 0, 6 * time.Second, 6},
		{"half open excludes to", 0, 3 * time.Second, 3},
		{"inner window", 2 * time.Second, 5 * time.Second, 3},
		{"empty window", 3 * time.Second, 3 * time.Second, 0},
		{"outside range", 10 * time.Second, 20 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.countBetween(base.Add(tt.from), base.Add(tt.to))
			if got != tt.want {
				t.Errorf("countBetween = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTimeRingWrapAndDrop(t *testing.T) {
	r := newTimeRing(4)
	base := time.Unix(0, 0)
	for i := 0; i < 7; i++ {
		r.push(base.Add(time.Duration(i) * time.Second))
	}

	if r.len() != 4 {
		t.Fatalf("len = %d, want 4", r.len())
	}
	if !r.at(0).Equal(base.Add(3 * time.Second)) {
		t.Errorf("oldest = %v, want t+3s", r.at(0))
	}

	r.dropBefore(base.Add(5 * time.Second))
	if r.len() != 2 {
		t.Errorf("len = %d after drop, want 2", r.len())
	}
}

func TestRingSteadyStateAllocations(t *testing.T) {
	sr := newSampleRing(16)
	tr := newTimeRing(16)
	base := time.Unix(0, 0)

	i := 0
	allocs := testing.AllocsPerRun(100, func() {
		now := base.Add(time.Duration(i) * time.Millisecond)
		sr.push(now, 0.5)
		sr.dropBefore(now.Add(-8 * time.Millisecond))
		sr.mean()
		tr.push(now)
		tr.dropBefore(now.Add(-8 * time.Millisecond))
		i++
	})
	if allocs > 0 {
		t.Errorf("expected zero steady-state allocations, got %.1f", allocs)
	}
}
