// Package profiler reports frame rate, frame time and memory statistics through a logger.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-xr/common"
)

// Stats is one reporting interval's summary.
type Stats struct {
	FPS          float64
	AvgFrame     time.Duration
	MaxFrame     time.Duration
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
	LastPauseUs  uint64
	MaxPauseUs   uint64
	SysMB        float64
	IntervalSpan time.Duration
}

// Profiler tracks frame timing between Tick calls and logs Stats once per interval.
type Profiler struct {
	logger   common.Logger
	interval time.Duration
	now      func() time.Time
	readMem  func(*runtime.MemStats)

	frameCount     int
	intervalStart  time.Time
	lastFrame      time.Time
	maxFrame       time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a profiler reporting every second through a nop logger unless configured.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:   common.NewNopLogger(),
		interval: time.Second,
		now:      time.Now,
		readMem:  runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(p)
	}
	p.intervalStart = p.now()
	p.lastFrame = p.intervalStart
	return p
}

// Tick records one frame. When the interval has elapsed it logs and returns the interval's stats.
//
// Returns:
//   - Stats: the interval summary, zero unless reported
//   - bool: true if stats were reported this tick
func (p *Profiler) Tick() (Stats, bool) {
	now := p.now()
	p.frameCount++
	p.maxFrame = max(p.maxFrame, now.Sub(p.lastFrame))
	p.lastFrame = now

	elapsed := now.Sub(p.intervalStart)
	if elapsed < p.interval {
		return Stats{}, false
	}

	p.readMem(&p.memStats)
	stats := Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		AvgFrame:     elapsed / time.Duration(p.frameCount),
		MaxFrame:     p.maxFrame,
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB:  float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:      p.memStats.NumGC,
		SysMB:        float64(p.memStats.Sys) / 1024 / 1024,
		IntervalSpan: elapsed,
	}
	stats.LastPauseUs, stats.MaxPauseUs = p.pauses()

	p.logger.Infof("FPS: %.2f | Frame: %s avg, %s max | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		stats.FPS, stats.AvgFrame, stats.MaxFrame, stats.HeapMB, stats.AllocRateMB, stats.GCCount, stats.LastPauseUs, stats.MaxPauseUs, stats.SysMB)

	p.frameCount = 0
	p.maxFrame = 0
	p.intervalStart = now
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return stats, true
}

// pauses returns the last GC pause and the longest pause since the previous report.
// PauseNs is a circular buffer of the last 256 pauses.
func (p *Profiler) pauses() (last, longest uint64) {
	gcCount := p.memStats.NumGC
	if gcCount == 0 {
		return 0, 0
	}
	last = p.memStats.PauseNs[(gcCount-1)%256] / 1000
	start := p.lastGCCount
	if gcCount-start > 256 {
		start = gcCount - 256
	}
	for i := start; i < gcCount; i++ {
		longest = max(longest, p.memStats.PauseNs[i%256]/1000)
	}
	return last, longest
}
