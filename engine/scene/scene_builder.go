package scene

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene name used in log messages.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithActive sets whether the scene submits draws. Inactive scenes submit nothing.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithComputeWorkers sets the number of workers that compute world matrices in Batches.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.computeWorkers = max(n, 1)
	}
}

// WithParallelThreshold sets the object count at which Batches splits matrix work across the
// compute pool. Smaller scenes are computed on the calling goroutine.
//
// Parameters:
//   - n: the threshold
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithParallelThreshold(n int) SceneBuilderOption {
	return func(s *scene) {
		s.parallelThreshold = max(n, 1)
	}
}

// WithLogger sets the logger. A nil logger is ignored.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(logger common.Logger) SceneBuilderOption {
	return func(s *scene) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ObjectOption is a functional option for an object passed to Scene.Add.
type ObjectOption func(o *object)

// WithTransform sets the initial world transform. The default is common.IdentityTransform().
//
// Parameters:
//   - t: the transform
//
// Returns:
//   - ObjectOption: option function to apply
func WithTransform(t common.Transform) ObjectOption {
	return func(o *object) {
		o.transform = t
	}
}

// WithPosition sets the initial position.
//
// Parameters:
//   - x: the x position
//   - y: the y position
//   - z: the z position
//
// Returns:
//   - ObjectOption: option function to apply
func WithPosition(x, y, z float32) ObjectOption {
	return func(o *object) {
		o.transform.Position = mgl32.Vec3{x, y, z}
	}
}

// WithScale sets the initial scale.
func WithScale(sx, sy, sz float32) ObjectOption {
	return func(o *object) {
		o.transform.Scale = mgl32.Vec3{sx, sy, sz}
	}
}

// WithLocalTransform sets a model-space matrix applied before the world transform. Objects only
// share a batch when their local transforms match.
//
// Parameters:
//   - m: the local transform
//
// Returns:
//   - ObjectOption: option function to apply
func WithLocalTransform(m mgl32.Mat4) ObjectOption {
	return func(o *object) {
		o.local = m
	}
}

// WithRotationSpeed sets the angular velocity applied by Scene.Update.
//
// Parameters:
//   - rx: radians per second about X
//   - ry: radians per second about Y
//   - rz: radians per second about Z
//
// Returns:
//   - ObjectOption: option function to apply
func WithRotationSpeed(rx, ry, rz float32) ObjectOption {
	return func(o *object) {
		o.spin = mgl32.Vec3{rx, ry, rz}
	}
}

// WithBoundingRadius sets the model-space bounding sphere radius used for frustum culling.
// Objects with a zero radius are never culled.
func WithBoundingRadius(r float32) ObjectOption {
	return func(o *object) {
		o.radius = max(r, 0)
	}
}

// WithEnabled sets whether the object is drawn.
func WithEnabled(enabled bool) ObjectOption {
	return func(o *object) {
		o.enabled = enabled
	}
}

// WithLight attaches a light. SyncLights moves it to the object's position plus offset, facing
// the object's forward axis.
//
// Parameters:
//   - lightID: the id returned by light.LightSystem.SpawnLight
//   - offset: the light position in object space
//
// Returns:
//   - ObjectOption: option function to apply
func WithLight(lightID uuid.UUID, offset mgl32.Vec3) ObjectOption {
	return func(o *object) {
		o.light = lightID
		o.lightOffset = offset
	}
}
