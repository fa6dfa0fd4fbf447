package util

import (
	"testing"
	"time"
)

func TestPerfDisabledRecordsNothing(t *testing.T) {
	PerfEnabled = false
	pt := GetPerfTracker()
	pt.Reset()

	Perf("noop", time.Now())
	PerfCount("noop")

	if got := len(pt.Metrics()); got != 0 {
		t.Errorf("expected no metrics, got %d", got)
	}
	if got := pt.GetCounter("noop"); got != 0 {
		t.Errorf("expected counter 0, got %d", got)
	}
}

func TestPerfRecordAggregates(t *testing.T) {
	PerfEnabled = true
	defer func() { PerfEnabled = false }()
	pt := GetPerfTracker()
	pt.Reset()

	pt.Record("fetch", 10*time.Millisecond)
	pt.Record("fetch", 30*time.Millisecond)

	m, ok := pt.Metrics()["fetch"]
	if !ok {
		t.Fatal("fetch metric missing")
	}
	if m.Count != 2 {
		t.Errorf("Count = %d, want 2", m.Count)
	}
	if m.Total != 40*time.Millisecond {
		t.Errorf("Total = %v, want 40ms", m.Total)
	}
	if m.Last != 30*time.Millisecond {
		t.Errorf("Last = %v, want 30ms", m.Last)
	}
}

func TestPerfCounters(t *testing.T) {
	PerfEnabled = true
	defer func() { PerfEnabled = false }()
	pt := GetPerfTracker()
	pt.Reset()

	PerfCount("cache.hit")
	PerfCount("cache.hit")
	PerfCount("cache.miss")

	if got := pt.GetCounter("cache.hit"); got != 2 {
		t.Errorf("cache.hit = %d, want 2", got)
	}
	if got := pt.GetCounter("cache.miss"); got != 1 {
		t.Errorf("cache.miss = %d, want 1", got)
	}
	if got := pt.GetCounter("unknown"); got != 0 {
		t.Errorf("unknown = %d, want 0", got)
	}
}

func TestPerfReset(t *testing.T) {
	PerfEnabled = true
	defer func() { PerfEnabled = false }()
	pt := GetPerfTracker()
	pt.Reset()

	pt.Record("x", time.Millisecond)
	pt.IncrementCounter("y")
	pt.Reset()

	if len(pt.Metrics()) != 0 || pt.GetCounter("y") != 0 {
		t.Error("Reset left data behind")
	}
}
