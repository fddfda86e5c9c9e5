package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/camera"
	"github.com/Carmen-Shannon/oxy-xr/engine/config"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/postproc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadless(t *testing.T, options ...EngineBuilderOption) (*engine, *gputest.Device, *gputest.Surface) {
	t.Helper()
	d := gputest.NewDevice()
	s := gputest.NewSurface(d)
	opts := append([]EngineBuilderOption{
		WithHeadless(d, s, common.NewExtent(64, 48)),
		WithLogger(common.NewNopLogger()),
	}, options...)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e.(*engine), d, s
}

func addMono(t *testing.T, e Engine) uuid.UUID {
	t.Helper()
	id, err := e.AddCamera([]camera.CameraInfo{camera.DefaultCameraInfo()}, []common.Transform{common.IdentityTransform()})
	require.NoError(t, err)
	return id
}

func TestNewEngineConfiguresSurface(t *testing.T) {
	e, _, s := newHeadless(t)
	assert.Equal(t, uint32(64), s.Width)
	assert.Equal(t, uint32(48), s.Height)
	assert.Nil(t, e.Window())
	assert.Equal(t, config.Default(), e.Config())
	assert.ErrorIs(t, e.Run(), ErrNoWindow)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RingSize = 2
	d := gputest.NewDevice()
	_, err := NewEngine(WithHeadless(d, nil, common.NewExtent(8, 8)), WithConfig(cfg), WithLogger(common.NewNopLogger()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRenderFramePresentsFirstCamera(t *testing.T) {
	var calls []float32
	e, d, s := newHeadless(t, WithFrameCallback(func(dt float32) { calls = append(calls, dt) }))
	first := addMono(t, e)
	addMono(t, e)

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, []float32{0.016}, calls)
	assert.Equal(t, 1, s.Acquired)
	assert.Equal(t, 1, s.Presented)
	require.Len(t, d.Submitted, 1)

	copies := 0
	for _, label := range d.PassLabels() {
		if label == postproc.CopyPassLabel {
			copies++
		}
	}
	assert.Equal(t, 1, copies, "only the present camera copies to the surface")

	cam, err := e.Cameras().Camera(first)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cam.FrameIndex())
	require.NotNil(t, cam.CopyTarget())
	assert.Equal(t, s.Format(), cam.CopyTarget().Format)
}

func TestSetPresentCamera(t *testing.T) {
	e, _, _ := newHeadless(t)
	first := addMono(t, e)
	second := addMono(t, e)
	require.NoError(t, e.SetPresentCamera(second))
	assert.ErrorIs(t, e.SetPresentCamera(uuid.New()), camera.ErrCameraNotFound)

	require.NoError(t, e.RenderFrame(0))
	a, err := e.Cameras().Camera(first)
	require.NoError(t, err)
	b, err := e.Cameras().Camera(second)
	require.NoError(t, err)
	assert.Nil(t, a.CopyTarget())
	assert.NotNil(t, b.CopyTarget())
}

func TestRenderFrameAcquireFailure(t *testing.T) {
	called := false
	e, d, s := newHeadless(t, WithFrameCallback(func(float32) { called = true }))
	addMono(t, e)
	s.AcquireErr = errors.New("outdated")

	err := e.RenderFrame(0)
	assert.ErrorIs(t, err, ErrAcquire)
	assert.False(t, called)
	assert.Empty(t, d.Submitted)
	assert.Equal(t, 0, s.Presented)
}

func TestRenderFrameReleasesImageOnFailure(t *testing.T) {
	e, d, s := newHeadless(t)
	addMono(t, e)

	d.FailCommandEncoder = func(string) error { return errors.New("device lost") }
	require.Error(t, e.RenderFrame(0))
	assert.Equal(t, 1, s.Acquired)
	assert.Equal(t, 0, s.Presented)
	assert.Equal(t, 1, s.Discarded)
	assert.False(t, s.Held())

	d.FailCommandEncoder = nil
	d.FailWriteBuffer = func(b *gputest.Buffer) error { return errors.New("out of memory") }
	require.Error(t, e.RenderFrame(0))
	assert.Equal(t, 2, s.Discarded, "failures while recording cameras release the image too")
	assert.False(t, s.Held())

	d.FailWriteBuffer = nil
	require.NoError(t, e.RenderFrame(0))
	assert.Equal(t, 1, s.Presented)
	assert.Equal(t, 2, s.Discarded, "presented images are not discarded")
	assert.False(t, s.Held())
}

func TestResize(t *testing.T) {
	e, d, s := newHeadless(t)
	id := addMono(t, e)

	require.NoError(t, e.Resize(128, 96))
	assert.Equal(t, uint32(128), s.Width)
	cam, err := e.Cameras().Camera(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), cam.Extent().Width)
	assert.Equal(t, uint32(96), cam.Extent().Height)

	require.NoError(t, e.Resize(0, 0))
	require.NoError(t, e.RenderFrame(0))
	assert.Empty(t, d.Submitted, "minimized frames are skipped")
	assert.Equal(t, 0, s.Acquired)
}

func TestShaderReloadAppliedBetweenFrames(t *testing.T) {
	e, _, _ := newHeadless(t)
	e.queueReload("custom::extra", "fn extra() -> f32 { return 1.0; }")
	_, ok := e.Library().Source("custom::extra")
	assert.False(t, ok, "changes wait for the render thread")

	require.NoError(t, e.RenderFrame(0))
	src, ok := e.Library().Source("custom::extra")
	require.True(t, ok)
	assert.Contains(t, src, "fn extra")
}

func TestReloadQueueDropsWhenFull(t *testing.T) {
	e, _, _ := newHeadless(t)
	for range reloadQueueSize + 5 {
		e.queueReload("custom::extra", "")
	}
	assert.Len(t, e.reloads, reloadQueueSize)
}

func TestQuitIsIdempotent(t *testing.T) {
	e, _, _ := newHeadless(t)
	assert.NotPanics(t, func() {
		e.Quit()
		e.Quit()
	})
	select {
	case <-e.quitChannel:
	default:
		t.Fatal("quit channel still open")
	}
}

func TestSetTickRate(t *testing.T) {
	e, _, _ := newHeadless(t, WithTickRate(30))
	assert.Equal(t, int64(33333333), e.engineTickRate.Nanoseconds())
	e.SetTickRate(0)
	assert.Equal(t, int64(16666666), e.engineTickRate.Nanoseconds())

	e.SetTickRate(0.5)
	assert.Equal(t, 2*time.Second, e.engineTickRate, "fractional rates do not truncate to zero")

	e.running.Store(true)
	e.SetTickRate(120)
	e.SetTickRate(240)
	assert.Len(t, e.tickRateChannel, 1, "pending updates are replaced")
}

func TestFractionalFrameLimit(t *testing.T) {
	e, _, _ := newHeadless(t, WithTickRate(0.25), WithRenderFrameLimit(0.5))
	assert.Equal(t, 4*time.Second, e.engineTickRate)
	assert.Equal(t, 2*time.Second, e.renderLimit)
}

func TestSetTickRateWhileTicking(t *testing.T) {
	e, _, _ := newHeadless(t, WithTickRate(1000))
	e.running.Store(true)
	e.wg.Add(1)
	go e.handleTicks()

	done := make(chan struct{})
	go func() {
		for range 50 {
			e.SetTickRate(500)
		}
		close(done)
	}()
	<-done
	e.Quit()
	e.wg.Wait()
	assert.False(t, e.running.Load())
}
