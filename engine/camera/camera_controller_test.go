package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVecNear(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4), "want %v, got %v", want, got)
}

func TestOrbitControllerLooksAtTarget(t *testing.T) {
	target := mgl32.Vec3{1, 2, 3}
	oc := NewOrbitController(WithTarget(target), WithRadius(5), WithAzimuth(0.4), WithElevation(0.3))

	tr := oc.Transform()
	assert.InDelta(t, 5, tr.Position.Sub(target).Len(), 1e-4)
	assertVecNear(t, target.Sub(tr.Position).Normalize(), tr.Forward())
	assert.Greater(t, tr.Up().Y(), float32(0))
}

func TestOrbitControllerClamps(t *testing.T) {
	oc := NewOrbitController(WithRadius(2), WithRadiusBounds(1, 3), WithSpeeds(1, 1, 1))

	oc.Zoom(10)
	assert.Equal(t, float32(1), oc.Radius())
	oc.Zoom(-10)
	assert.Equal(t, float32(3), oc.Radius())

	oc.Orbit(0, 100)
	tr := oc.Transform()
	assert.Less(t, tr.Forward().Y(), float32(0), "camera above the pivot looks down")
	assert.Greater(t, tr.Position.Y(), float32(2.9))
}

func TestOrbitControllerPan(t *testing.T) {
	oc := NewOrbitController(WithSpeeds(0.03, 1, 1), WithElevation(0))

	// At azimuth 0 the camera sits on +Z looking down -Z, so right is +X.
	oc.Pan(1, 0, 0)
	assertVecNear(t, mgl32.Vec3{1, 0, 0}, oc.Target())

	oc.Pan(0, 0, 2)
	assertVecNear(t, mgl32.Vec3{1, 0, -2}, oc.Target())

	oc.Pan(0, 1, 0)
	assertVecNear(t, mgl32.Vec3{1, 1, -2}, oc.Target())
}
