package app

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Profiler records the last CPU duration of each frame phase and the pool
// counters published alongside them. Not safe for concurrent use.
type Profiler struct {
	Scopes map[string]time.Duration
	Counts map[string]int
	// Order lists phases as first measured.
	Order []string

	open map[string]time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes: map[string]time.Duration{},
		Counts: map[string]int{},
		open:   map[string]time.Time{},
	}
}

func (p *Profiler) BeginScope(phase string) {
	if !slices.Contains(p.Order, phase) {
		p.Order = append(p.Order, phase)
	}
	p.open[phase] = time.Now()
}

// EndScope is a no-op for a phase that was never begun.
func (p *Profiler) EndScope(phase string) {
	start, ok := p.open[phase]
	if !ok {
		return
	}
	delete(p.open, phase)
	p.Scopes[phase] = time.Since(start)
}

func (p *Profiler) Measure(phase string, fn func()) {
	p.BeginScope(phase)
	defer p.EndScope(phase)
	fn()
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset zeroes the durations and keeps the phase order.
func (p *Profiler) Reset() {
	for phase := range p.Scopes {
		p.Scopes[phase] = 0
	}
}

// Timings reports each phase in milliseconds, as sent to telemetry clients.
func (p *Profiler) Timings() map[string]float64 {
	out := make(map[string]float64, len(p.Scopes))
	for phase, d := range p.Scopes {
		out[phase] = millis(d)
	}
	return out
}

func millis(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// GetStatsString formats the phases in measurement order followed by the
// counters sorted by name.
func (p *Profiler) GetStatsString() string {
	var sb strings.Builder
	sb.WriteString("Frame phases (CPU):\n")
	for _, phase := range p.Order {
		fmt.Fprintf(&sb, "  %-18s %7.2f ms\n", phase, millis(p.Scopes[phase]))
	}
	if len(p.Counts) == 0 {
		return sb.String()
	}
	sb.WriteString("Pool:\n")
	for _, name := range slices.Sorted(maps.Keys(p.Counts)) {
		fmt.Fprintf(&sb, "  %-18s %7d\n", name, p.Counts[name])
	}
	return sb.String()
}
