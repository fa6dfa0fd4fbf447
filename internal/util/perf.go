package util

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// PerfEnabled gates all profiling. SetDebugMode flips it, so a -debug run
// doubles as a profiling run.
var PerfEnabled bool

// PerfMetric aggregates the samples recorded under one name.
type PerfMetric struct {
	Name  string
	Count int64
	Total time.Duration
	Last  time.Duration
}

// PerfTracker collects timings and counters for the session report.
type PerfTracker struct {
	mu       sync.RWMutex
	started  time.Time
	metrics  map[string]*PerfMetric
	counters map[string]int64
}

var (
	globalPerf     *PerfTracker
	globalPerfOnce sync.Once
)

// GetPerfTracker returns the process-wide tracker.
func GetPerfTracker() *PerfTracker {
	globalPerfOnce.Do(func() {
		globalPerf = &PerfTracker{
			started:  time.Now(),
			metrics:  make(map[string]*PerfMetric),
			counters: make(map[string]int64),
		}
	})
	return globalPerf
}

// Record adds one sample under name.
func (pt *PerfTracker) Record(name string, d time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	m, ok := pt.metrics[name]
	if !ok {
		m = &PerfMetric{Name: name}
		pt.metrics[name] = m
	}
	m.Count++
	m.Total += d
	m.Last = d
}

// IncrementCounter bumps a named counter.
func (pt *PerfTracker) IncrementCounter(name string) {
	pt.mu.Lock()
	pt.counters[name]++
	pt.mu.Unlock()
}

// GetCounter returns the current value of a counter.
func (pt *PerfTracker) GetCounter(name string) int64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.counters[name]
}

// Metrics returns a copy of the aggregated samples.
func (pt *PerfTracker) Metrics() map[string]PerfMetric {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make(map[string]PerfMetric, len(pt.metrics))
	for name, m := range pt.metrics {
		out[name] = *m
	}
	return out
}

// Reset clears all samples and counters and restarts the uptime clock.
func (pt *PerfTracker) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.metrics = make(map[string]*PerfMetric)
	pt.counters = make(map[string]int64)
	pt.started = time.Now()
}

var (
	perfTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	perfHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4")).Bold(true)
	perfNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))
	perfValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	perfSlowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	perfRuleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#636E72"))
)

// PrintReport writes the session profile to stdout. No-op unless profiling
// is enabled.
func (pt *PerfTracker) PrintReport() {
	if !PerfEnabled {
		return
	}

	pt.mu.RLock()
	defer pt.mu.RUnlock()

	var b strings.Builder
	rule := perfRuleStyle.Render(strings.Repeat("─", 64))

	b.WriteString("\n" + rule + "\n")
	b.WriteString(perfTitleStyle.Render("⚡ Session profile") + "\n")
	b.WriteString(fmt.Sprintf("   uptime %s\n",
		perfValueStyle.Render(time.Since(pt.started).Round(time.Millisecond).String())))

	names := make([]string, 0, len(pt.metrics))
	for name := range pt.metrics {
		names = append(names, name)
	}
	// Slowest first.
	sort.Slice(names, func(i, j int) bool {
		return pt.metrics[names[i]].Total > pt.metrics[names[j]].Total
	})

	if len(names) > 0 {
		b.WriteString("\n" + perfHeaderStyle.Render("⏱  Timings") + "\n")
		for _, name := range names {
			m := pt.metrics[name]
			avg := m.Total / time.Duration(m.Count)

			totalStr := m.Total.Round(time.Millisecond).String()
			if m.Total > 5*time.Second {
				totalStr = perfSlowStyle.Render(totalStr)
			} else {
				totalStr = perfValueStyle.Render(totalStr)
			}

			// Pad before styling: ANSI escapes would break %-32s alignment.
			b.WriteString(fmt.Sprintf("   %s %10s  ×%-4d avg %s\n",
				perfNameStyle.Render(fmt.Sprintf("%-32s", name)),
				totalStr,
				m.Count,
				perfValueStyle.Render(avg.Round(time.Millisecond).String())))
		}
	}

	if len(pt.counters) > 0 {
		names = names[:0]
		for name := range pt.counters {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\n" + perfHeaderStyle.Render("🔢 Counters") + "\n")
		for _, name := range names {
			b.WriteString(fmt.Sprintf("   %s %d\n",
				perfNameStyle.Render(fmt.Sprintf("%-32s", name)),
				pt.counters[name]))
		}
	}

	b.WriteString(rule + "\n")
	fmt.Print(b.String())
}

// Perf records one sample measured from start. Meant for defer:
//
//	defer util.Perf("repository.fetch", time.Now())
func Perf(name string, start time.Time) {
	if !PerfEnabled {
		return
	}
	GetPerfTracker().Record(name, time.Since(start))
}

// PerfCount bumps a named counter when profiling is enabled.
func PerfCount(name string) {
	if !PerfEnabled {
		return
	}
	GetPerfTracker().IncrementCounter(name)
}
