package camera

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ProjectionType selects how a CameraInfo maps view space to clip space.
type ProjectionType int

const (
	// ProjectionPerspective is an off-center perspective frustum.
	ProjectionPerspective ProjectionType = iota
	// ProjectionOrthographic is a box spanned by the FOV tangents.
	ProjectionOrthographic
)

// String returns the projection name.
func (p ProjectionType) String() string {
	switch p {
	case ProjectionPerspective:
		return "perspective"
	case ProjectionOrthographic:
		return "orthographic"
	default:
		return "unknown"
	}
}

const (
	// DefaultHalfAngle is the magnitude of each default FOV half-angle (45 degrees).
	DefaultHalfAngle = math32.Pi / 4
	// DefaultNear is the default near clip distance.
	DefaultNear = 0.05
	// DefaultFar is the default far clip distance.
	DefaultFar = 10000
)

// Fov is a view frustum as four half-angles in radians. Left and down are negative for a frustum
// that contains the view axis, matching how XR runtimes report per-eye FOVs.
type Fov struct {
	Left  float32
	Right float32
	Up    float32
	Down  float32
}

// SymmetricFov returns a frustum with the given vertical FOV and aspect ratio.
//
// Parameters:
//   - fovY: full vertical field of view in radians
//   - aspect: width over height
//
// Returns:
//   - Fov: the four half-angles
func SymmetricFov(fovY, aspect float32) Fov {
	tanY := math32.Tan(fovY / 2)
	halfX := math32.Atan(tanY * aspect)
	return Fov{Left: -halfX, Right: halfX, Up: fovY / 2, Down: -fovY / 2}
}

// CameraInfo describes one view's projection. It is a value type; the With helpers return
// modified copies.
type CameraInfo struct {
	fov        Fov
	near       float32
	far        float32
	projection ProjectionType
}

// DefaultCameraInfo returns a 90 degree perspective view with near 0.05 and far 10000.
func DefaultCameraInfo() CameraInfo {
	return CameraInfo{
		fov:        Fov{Left: -DefaultHalfAngle, Right: DefaultHalfAngle, Up: DefaultHalfAngle, Down: -DefaultHalfAngle},
		near:       DefaultNear,
		far:        DefaultFar,
		projection: ProjectionPerspective,
	}
}

// NewCameraInfo creates a CameraInfo.
//
// Parameters:
//   - fov: the four half-angles in radians
//   - near, far: clip distances
//   - projection: perspective or orthographic
//
// Returns:
//   - CameraInfo: the info
func NewCameraInfo(fov Fov, near, far float32, projection ProjectionType) CameraInfo {
	return CameraInfo{fov: fov, near: near, far: far, projection: projection}
}

func (c CameraInfo) Fov() Fov                   { return c.fov }
func (c CameraInfo) Near() float32              { return c.near }
func (c CameraInfo) Far() float32               { return c.far }
func (c CameraInfo) Projection() ProjectionType { return c.projection }

func (c *CameraInfo) SetFov(fov Fov)                 { c.fov = fov }
func (c *CameraInfo) SetNear(near float32)           { c.near = near }
func (c *CameraInfo) SetFar(far float32)             { c.far = far }
func (c *CameraInfo) SetProjection(p ProjectionType) { c.projection = p }

// WithFov returns a copy with the given FOV.
func (c CameraInfo) WithFov(fov Fov) CameraInfo {
	c.fov = fov
	return c
}

// WithNear returns a copy with the given near distance.
func (c CameraInfo) WithNear(near float32) CameraInfo {
	c.near = near
	return c
}

// WithFar returns a copy with the given far distance.
func (c CameraInfo) WithFar(far float32) CameraInfo {
	c.far = far
	return c
}

// WithProjection returns a copy with the given projection type.
func (c CameraInfo) WithProjection(p ProjectionType) CameraInfo {
	c.projection = p
	return c
}

// ProjectionMatrix returns the unjittered projection.
func (c CameraInfo) ProjectionMatrix() mgl32.Mat4 {
	tanLeft := math32.Tan(c.fov.Left)
	tanRight := math32.Tan(c.fov.Right)
	tanUp := math32.Tan(c.fov.Up)
	tanDown := math32.Tan(c.fov.Down)
	if c.projection == ProjectionOrthographic {
		return common.OrthographicOffCenter(tanLeft, tanRight, tanDown, tanUp, c.near, c.far)
	}
	return common.PerspectiveOffCenter(tanLeft, tanRight, tanDown, tanUp, c.near, c.far)
}

// AsViewParams builds the view's matrices for a frame. The jitter is converted to an NDC offset and
// folded into the projection before it is combined with the view. The previous-frame fields hold
// this frame's own view-projection and jitter, so a view with no history reprojects onto itself.
//
// Parameters:
//   - transform: the eye transform; it looks down its rotated -Z with rotated +Y up
//   - extent: the viewport size in pixels
//   - jitterPixels: subpixel offset in pixels, usually from JitterOffset
//
// Returns:
//   - ViewParams: the matrices and their inverses
func (c CameraInfo) AsViewParams(transform common.Transform, extent common.Extent, jitterPixels mgl32.Vec2) ViewParams {
	view := common.LookTo(transform.Position, transform.Forward(), transform.Up())
	base := c.ProjectionMatrix()

	var jitter mgl32.Vec2
	if extent.Width > 0 && extent.Height > 0 {
		jitter = mgl32.Vec2{
			jitterPixels.X() * 2 / float32(extent.Width),
			jitterPixels.Y() * 2 / float32(extent.Height),
		}
	}

	// Both branches shift NDC by +jitter; perspective divides by w = -z.
	proj := base
	if c.projection == ProjectionOrthographic {
		proj[12] += jitter.X()
		proj[13] += jitter.Y()
	} else {
		proj[8] -= jitter.X()
		proj[9] -= jitter.Y()
	}

	viewProj := proj.Mul4(view)
	return ViewParams{
		ViewProjection:     viewProj,
		InvViewProjection:  viewProj.Inv(),
		PrevViewProjection: viewProj,
		View:               view,
		InvView:            view.Inv(),
		Projection:         proj,
		InvProjection:      proj.Inv(),
		WorldPosition:      transform.Position,
		Jitter:             jitter,
		PrevJitter:         jitter,
	}
}

// JitterOffset returns the subpixel jitter for a frame, in pixels. It walks the Halton (2, 3)
// sequence, restarting every sampleCount frames, centered on zero. A sampleCount of 0 disables
// jitter.
//
// Parameters:
//   - frameIndex: the camera's frame counter
//   - sampleCount: the sequence length
//
// Returns:
//   - mgl32.Vec2: the offset, each component in (-0.5, 0.5)
func JitterOffset(frameIndex uint64, sampleCount uint32) mgl32.Vec2 {
	if sampleCount == 0 {
		return mgl32.Vec2{}
	}
	i := frameIndex%uint64(sampleCount) + 1
	return mgl32.Vec2{halton(i, 2) - 0.5, halton(i, 3) - 0.5}
}

func halton(index, base uint64) float32 {
	f := float32(1)
	r := float32(0)
	for i := index; i > 0; i /= base {
		f /= float32(base)
		r += f * float32(i%base)
	}
	return r
}
