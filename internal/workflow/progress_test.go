package workflow

import (
	"testing"
	"time"
)

func TestFixedStepPlan(t *testing.T) {
	plan := newProgressPlan(95, []int{10, 50, 70}, time.Second, 0, 0.5)
	want := []int{10, 50, 70, 70, 70}
	current := 0
	for i, expected := range want {
		current = plan.next(current, i+1)
		if current != expected {
			t.Fatalf("tick %d: progress = %d, want %d", i+1, current, expected)
		}
	}
}

func TestDurationPlanIsCappedAndMonotonic(t *testing.T) {
	// 60s of media at half real time gives 30s expected, so 2s ticks add ~6.3 points.
	plan := newProgressPlan(95, []int{10, 50, 70}, 2*time.Second, 60, 0.5)
	if plan.perTick <= 0 {
		t.Fatal("expected duration-informed pacing")
	}
	current := 0
	for tick := 1; tick <= 40; tick++ {
		next := plan.next(current, tick)
		if next < current {
			t.Fatalf("tick %d: progress went backwards %d -> %d", tick, current, next)
		}
		if next > 95 {
			t.Fatalf("tick %d: progress %d exceeds cap", tick, next)
		}
		current = next
	}
	if current != 95 {
		t.Fatalf("expected progress to settle at cap, got %d", current)
	}
	if got := plan.next(0, 1); got != 6 {
		t.Fatalf("first tick = %d, want 6", got)
	}
}

func TestPlanNeverLowersProgress(t *testing.T) {
	plan := newProgressPlan(95, []int{10, 50, 70}, time.Second, 0, 0.5)
	if got := plan.next(60, 1); got != 60 {
		t.Fatalf("progress lowered to %d", got)
	}
}

func TestPlanClampsInvalidCap(t *testing.T) {
	plan := newProgressPlan(100, []int{99}, time.Second, 0, 0.5)
	if got := plan.next(0, 1); got != 95 {
		t.Fatalf("progress = %d, want 95", got)
	}
}

func TestLongMediaAdvancesAtLeastOnePoint(t *testing.T) {
	plan := newProgressPlan(95, nil, 10*time.Millisecond, 3600, 1)
	if got := plan.next(0, 1); got != 1 {
		t.Fatalf("progress = %d, want 1", got)
	}
}
