package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// OrbitController drives a desktop camera around a pivot with spherical coordinates (radius,
// azimuth, elevation) and pans the pivot along the camera's local axes. XR cameras take their
// transforms from the runtime instead; this is for windowed previews and examples.
type OrbitController struct {
	mu *sync.Mutex

	target    mgl32.Vec3
	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
	panSpeed   float32
}

// NewOrbitController creates a controller looking at the origin from 10 units away, 30 degrees up.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - *OrbitController: the controller
func NewOrbitController(options ...OrbitControllerOption) *OrbitController {
	oc := &OrbitController{
		mu:           &sync.Mutex{},
		radius:       10,
		elevation:    math32.Pi / 6,
		minRadius:    0.5,
		maxRadius:    500,
		minElevation: -math32.Pi/2 + 0.1,
		maxElevation: math32.Pi/2 - 0.1,
		orbitSpeed:   0.03,
		zoomSpeed:    1,
		panSpeed:     0.1,
	}
	for _, option := range options {
		option(oc)
	}
	oc.radius = clamp(oc.radius, oc.minRadius, oc.maxRadius)
	oc.elevation = clamp(oc.elevation, oc.minElevation, oc.maxElevation)
	return oc
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

// position is target + spherical offset. Caller must hold the mutex.
func (oc *OrbitController) position() mgl32.Vec3 {
	cosElev, sinElev := math32.Cos(oc.elevation), math32.Sin(oc.elevation)
	cosAzim, sinAzim := math32.Cos(oc.azimuth), math32.Sin(oc.azimuth)
	return oc.target.Add(mgl32.Vec3{
		oc.radius * cosElev * sinAzim,
		oc.radius * sinElev,
		oc.radius * cosElev * cosAzim,
	})
}

// Transform returns the eye transform looking from the orbit position at the pivot.
func (oc *OrbitController) Transform() common.Transform {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	eye := oc.position()
	rot := mgl32.Mat4ToQuat(mgl32.LookAtV(eye, oc.target, common.AxisY).Inv())
	return common.Transform{Position: eye, Rotation: rot, Scale: mgl32.Vec3{1, 1, 1}}
}

// Target returns the pivot.
func (oc *OrbitController) Target() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

// SetTarget moves the pivot; the spherical offset is kept.
func (oc *OrbitController) SetTarget(target mgl32.Vec3) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = target
}

// Radius returns the distance from the pivot.
func (oc *OrbitController) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.radius
}

// Orbit rotates around the pivot by whole speed steps. Elevation is clamped.
//
// Parameters:
//   - azimuthSteps: horizontal steps, positive to the right
//   - elevationSteps: vertical steps, positive upward
func (oc *OrbitController) Orbit(azimuthSteps, elevationSteps float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth += azimuthSteps * oc.orbitSpeed
	oc.elevation = clamp(oc.elevation+elevationSteps*oc.orbitSpeed, oc.minElevation, oc.maxElevation)
}

// Zoom moves toward the pivot. Positive delta zooms in. The radius is clamped.
func (oc *OrbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = clamp(oc.radius-delta*oc.zoomSpeed, oc.minRadius, oc.maxRadius)
}

// Pan translates the pivot along the camera's right, up and forward axes. The forward axis is
// flattened onto the ground plane.
//
// Parameters:
//   - right, up, forward: distances in pan speed units
func (oc *OrbitController) Pan(right, up, forward float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	back := oc.position().Sub(oc.target)
	back[1] = 0
	if back.Len() < 1e-6 {
		back = common.AxisZ
	}
	back = back.Normalize()
	rightAxis := common.AxisY.Cross(back)
	offset := rightAxis.Mul(right).
		Add(common.AxisY.Mul(up)).
		Sub(back.Mul(forward))
	oc.target = oc.target.Add(offset.Mul(oc.panSpeed))
}
