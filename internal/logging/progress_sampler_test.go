package logging_test

import (
	"testing"

	"scribe/internal/logging"
)

func TestProgressSamplerBuckets(t *testing.T) {
	sampler := logging.NewProgressSampler(25)
	steps := []struct {
		percent int
		want    bool
	}{
		{0, true},
		{10, false},
		{24, false},
		{25, true},
		{40, false},
		{70, true},
		{95, true},
		{96, false},
		{100, true},
	}
	for _, step := range steps {
		if got := sampler.ShouldLog(step.percent); got != step.want {
			t.Fatalf("ShouldLog(%d) = %v, want %v", step.percent, got, step.want)
		}
	}

	sampler.Reset()
	if !sampler.ShouldLog(10) {
		t.Fatal("expected log after reset")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var sampler *logging.ProgressSampler
	if !sampler.ShouldLog(50) {
		t.Fatal("nil sampler should always log")
	}
}
