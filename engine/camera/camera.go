package camera

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// CopyTarget is a presentation view a camera's final color is blitted into, such as a desktop
// mirror window next to an XR session.
type CopyTarget struct {
	View   gpu.TextureView
	Format wgpu.TextureFormat
}

// CameraInstance is one camera: one or more views that render into a shared layered framebuffer.
// A stereo camera has two views and renders into two-layer targets.
type CameraInstance struct {
	mu *sync.Mutex

	id       uuid.UUID
	infos    []CameraInfo
	poses    []common.Transform
	extent   common.Extent
	previous []ViewParams
	emitted  []ViewParams

	frameIndex  uint64
	sampleCount uint32

	framebuffer *framebuffer.Framebuffer
	uniform     *gpu.TypedBuffer
	bindGroup   gpu.BindGroup
	copyTarget  *CopyTarget
}

// ID returns the camera id.
func (c *CameraInstance) ID() uuid.UUID {
	return c.id
}

// ViewCount returns the number of views, which is also the framebuffer layer count.
func (c *CameraInstance) ViewCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.infos)
}

// SetTransforms replaces the per-view eye transforms.
//
// Parameters:
//   - transforms: one transform per view
//
// Returns:
//   - error: if the count does not match the view count
func (c *CameraInstance) SetTransforms(transforms []common.Transform) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(transforms) != len(c.infos) {
		return fmt.Errorf("camera %s: got %d transforms for %d views", c.id, len(transforms), len(c.infos))
	}
	copy(c.poses, transforms)
	return nil
}

// Transforms returns a copy of the per-view eye transforms.
func (c *CameraInstance) Transforms() []common.Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.Transform(nil), c.poses...)
}

// SetCameraInfos replaces the per-view projection settings.
//
// Parameters:
//   - infos: one info per view
//
// Returns:
//   - error: if the count does not match the view count
func (c *CameraInstance) SetCameraInfos(infos []CameraInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(infos) != len(c.infos) {
		return fmt.Errorf("camera %s: got %d infos for %d views", c.id, len(infos), len(c.infos))
	}
	copy(c.infos, infos)
	return nil
}

// CameraInfos returns a copy of the per-view projection settings.
func (c *CameraInstance) CameraInfos() []CameraInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CameraInfo(nil), c.infos...)
}

// SetTAASampleCount sets the jitter sequence length. Zero disables jitter.
func (c *CameraInstance) SetTAASampleCount(count uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sampleCount = count
}

// UpdateViewParams computes this frame's view params for every view. Each emitted entry pairs the
// fresh matrices with the view-projection and jitter emitted by the previous frame. Until two
// frames have been computed a view is paired with itself. The frame index is incremented after.
// Call once per frame, after the framebuffer's BeginFrame.
func (c *CameraInstance) UpdateViewParams() {
	c.mu.Lock()
	defer c.mu.Unlock()

	jitter := JitterOffset(c.frameIndex, c.sampleCount)
	for i, info := range c.infos {
		fresh := info.AsViewParams(c.poses[i], c.extent, jitter)
		emitted := fresh
		if c.frameIndex > 1 {
			emitted.PrevViewProjection = c.previous[i].ViewProjection
			emitted.PrevJitter = c.previous[i].Jitter
		}
		c.previous[i] = fresh
		c.emitted[i] = emitted
	}
	c.frameIndex++
}

// ViewParams returns a copy of the view params emitted by the last UpdateViewParams.
func (c *CameraInstance) ViewParams() []ViewParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ViewParams(nil), c.emitted...)
}

// FrameIndex returns the number of UpdateViewParams calls so far.
func (c *CameraInstance) FrameIndex() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameIndex
}

// UpdateUniform uploads the emitted view params to the view uniform buffer.
//
// Parameters:
//   - device: the device owning the buffer
//
// Returns:
//   - error: if the upload fails
func (c *CameraInstance) UpdateUniform(device gpu.Device) error {
	c.mu.Lock()
	data := MarshalViewParams(c.emitted)
	c.mu.Unlock()
	if err := c.uniform.Write(device, 0, data); err != nil {
		return fmt.Errorf("failed to upload view params for camera %s: %w", c.id, err)
	}
	return nil
}

// Framebuffer returns the camera's render targets.
func (c *CameraInstance) Framebuffer() *framebuffer.Framebuffer {
	return c.framebuffer
}

// Uniform returns the view uniform buffer.
func (c *CameraInstance) Uniform() *gpu.TypedBuffer {
	return c.uniform
}

// BindGroup returns the view params bind group, bound at group 0 by every pass that reads views.
func (c *CameraInstance) BindGroup() gpu.BindGroup {
	return c.bindGroup
}

// SetCopyTarget sets the view that the final color is copied into this frame. A nil view clears it.
//
// Parameters:
//   - view: the presentation view, or nil
//   - format: the view's texture format
func (c *CameraInstance) SetCopyTarget(view gpu.TextureView, format wgpu.TextureFormat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if view == nil {
		c.copyTarget = nil
		return
	}
	c.copyTarget = &CopyTarget{View: view, Format: format}
}

// CopyTarget returns the copy target, or nil when none is set.
func (c *CameraInstance) CopyTarget() *CopyTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyTarget
}

// Extent returns the render size. Layers equals the view count.
func (c *CameraInstance) Extent() common.Extent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extent
}

// Resize recreates the framebuffer at a new size. The view count is kept.
//
// Parameters:
//   - width, height: the new size in pixels
//
// Returns:
//   - error: if the framebuffer cannot be reallocated
func (c *CameraInstance) Resize(width, height uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	extent := common.Extent{Width: width, Height: height, Layers: uint32(len(c.infos))}
	if extent == c.extent {
		return nil
	}
	if err := c.framebuffer.Resize(extent); err != nil {
		return fmt.Errorf("failed to resize camera %s: %w", c.id, err)
	}
	c.extent = extent
	return nil
}

// Release frees the camera's GPU resources.
func (c *CameraInstance) Release() {
	if c.bindGroup != nil {
		c.bindGroup.Release()
		c.bindGroup = nil
	}
	if c.uniform != nil {
		c.uniform.Release()
		c.uniform = nil
	}
	if c.framebuffer != nil {
		c.framebuffer.Release()
		c.framebuffer = nil
	}
}

func identityViews(n int) []ViewParams {
	views := make([]ViewParams, n)
	for i := range views {
		id := mgl32.Ident4()
		views[i] = ViewParams{
			ViewProjection: id, InvViewProjection: id, PrevViewProjection: id,
			View: id, InvView: id, Projection: id, InvProjection: id,
		}
	}
	return views
}
