package camera

import "github.com/go-gl/mathgl/mgl32"

// OrbitControllerOption is a functional option for configuring an OrbitController.
type OrbitControllerOption func(*OrbitController)

// WithRadius sets the initial distance from the pivot.
//
// Parameters:
//   - radius: the distance
//
// Returns:
//   - OrbitControllerOption: functional option to set the radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis.
//
// Parameters:
//   - azimuth: the angle in radians
//
// Returns:
//   - OrbitControllerOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle above the horizontal plane.
//
// Parameters:
//   - elevation: the angle in radians
//
// Returns:
//   - OrbitControllerOption: functional option to set the elevation
func WithElevation(elevation float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.elevation = elevation
	}
}

// WithTarget sets the pivot.
func WithTarget(target mgl32.Vec3) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
func WithRadiusBounds(minRadius, maxRadius float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.minRadius = minRadius
		oc.maxRadius = maxRadius
	}
}

// WithSpeeds sets the orbit step in radians, the zoom step and the pan step.
func WithSpeeds(orbit, zoom, pan float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.orbitSpeed = orbit
		oc.zoomSpeed = zoom
		oc.panSpeed = pan
	}
}
