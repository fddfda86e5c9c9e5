package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineWindowClampsSize(t *testing.T) {
	w := newEngineWindow(WithTitle("demo"), WithSize(100, 5000), WithSizeLimits(200, 200, 1920, 1080))
	assert.Equal(t, "demo", w.Title())
	assert.Equal(t, common.NewExtent(200, 1080), w.Extent())
	assert.False(t, w.IsRunning(), "no platform window yet")
	assert.ErrorIs(t, w.Close(), ErrNotInitialized)
	assert.Nil(t, w.SurfaceDescriptor())
}

func TestResizeForwardsAndMinimizes(t *testing.T) {
	w := newEngineWindow()
	var got [2]int
	w.SetResizeCallback(func(width, height int) { got = [2]int{width, height} })

	w.resized(800, 600)
	assert.Equal(t, [2]int{800, 600}, got)
	assert.Equal(t, common.NewExtent(800, 600), w.Extent())

	w.resized(0, 0)
	assert.True(t, w.Extent().IsZero())
}

func TestDragReportsDeltasWhileHeld(t *testing.T) {
	w := newEngineWindow()
	var deltas [][2]float32
	w.SetInputHandler(InputHandler{OnDrag: func(dx, dy float32) { deltas = append(deltas, [2]float32{dx, dy}) }})

	w.cursorMoved(10, 10)
	assert.Empty(t, deltas, "no drag without a pressed button")

	w.drag.press(10, 10)
	w.cursorMoved(15, 8)
	w.cursorMoved(15, 8)
	w.cursorMoved(20, 8)
	w.drag.release()
	w.cursorMoved(40, 40)

	require.Len(t, deltas, 2)
	assert.Equal(t, [2]float32{5, -2}, deltas[0])
	assert.Equal(t, [2]float32{5, 0}, deltas[1])
}

func TestInputHandlerSkipsNilCallbacks(t *testing.T) {
	w := newEngineWindow()
	assert.NotPanics(t, func() {
		w.key(65, true)
		w.scroll(1)
	})

	var keys []bool
	var scroll float32
	w.SetInputHandler(InputHandler{
		OnKey:    func(_ uint32, pressed bool) { keys = append(keys, pressed) },
		OnScroll: func(delta float32) { scroll += delta },
	})
	w.key(65, true)
	w.key(65, false)
	w.scroll(-2)
	assert.Equal(t, []bool{true, false}, keys)
	assert.Equal(t, float32(-2), scroll)
}
