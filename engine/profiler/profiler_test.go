package profiler

import (
	"bytes"
	"runtime"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTickReportsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var out bytes.Buffer
	p := NewProfiler(
		WithClock(clock.now),
		WithInterval(time.Second),
		WithLogger(common.NewWriterLogger("test", false, &out, &out)),
	)
	p.readMem = func(m *runtime.MemStats) {
		m.Alloc = 2 * 1024 * 1024
		m.TotalAlloc = 4 * 1024 * 1024
		m.Sys = 8 * 1024 * 1024
		m.NumGC = 2
		m.PauseNs[0] = 3000
		m.PauseNs[1] = 1000
	}

	for range 3 {
		clock.advance(250 * time.Millisecond)
		_, reported := p.Tick()
		assert.False(t, reported)
	}
	assert.Empty(t, out.String())

	clock.advance(250 * time.Millisecond)
	stats, reported := p.Tick()
	require.True(t, reported)
	assert.InDelta(t, 4, stats.FPS, 1e-9)
	assert.Equal(t, 250*time.Millisecond, stats.AvgFrame)
	assert.Equal(t, 250*time.Millisecond, stats.MaxFrame)
	assert.InDelta(t, 2, stats.HeapMB, 1e-9)
	assert.InDelta(t, 4, stats.AllocRateMB, 1e-9)
	assert.Equal(t, uint32(2), stats.GCCount)
	assert.Equal(t, uint64(1), stats.LastPauseUs)
	assert.Equal(t, uint64(3), stats.MaxPauseUs)
	assert.Contains(t, out.String(), "FPS: 4.00")

	clock.advance(100 * time.Millisecond)
	_, reported = p.Tick()
	assert.False(t, reported, "interval restarts after a report")
}

func TestMaxFrameTracksSlowestFrame(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second))
	p.readMem = func(*runtime.MemStats) {}

	clock.advance(100 * time.Millisecond)
	p.Tick()
	clock.advance(700 * time.Millisecond)
	p.Tick()
	clock.advance(200 * time.Millisecond)
	stats, reported := p.Tick()
	require.True(t, reported)
	assert.Equal(t, 700*time.Millisecond, stats.MaxFrame)
	assert.Equal(t, uint64(0), stats.MaxPauseUs)
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	p := NewProfiler(WithInterval(0), WithLogger(nil), WithClock(nil))
	assert.Equal(t, time.Second, p.interval)
	assert.NotNil(t, p.logger)
	assert.NotNil(t, p.now)
}
