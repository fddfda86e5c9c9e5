// Package camera holds the camera system: per-view projection settings, TAA jitter, view-params
// history and each camera's framebuffer and view uniform.
package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

const (
	// DefaultTAASampleCount is the jitter sequence length used when none is configured.
	DefaultTAASampleCount = 8
	// DefaultExtentSize is the edge length used when a camera is added with a zero extent.
	DefaultExtentSize = 1024
)

// ErrCameraNotFound is returned when a camera id is not registered.
var ErrCameraNotFound = errors.New("camera not found")

type cameraSystemImpl struct {
	mu *sync.Mutex

	device      gpu.Device
	logger      common.Logger
	ringSize    int
	sampleCount uint32

	viewLayout gpu.BindGroupLayout
	cameras    map[uuid.UUID]*CameraInstance
	order      []uuid.UUID
}

// CameraSystem owns every camera and the view-params bind group layout they share.
type CameraSystem interface {
	// AddCamera creates a camera with one view per info. A zero extent defaults to
	// DefaultExtentSize square.
	//
	// Parameters:
	//   - infos: per-view projection settings; at least one
	//   - transforms: per-view eye transforms, same length as infos
	//   - extent: the render size in pixels; Layers is ignored and set to len(infos)
	//   - outputFormat: the format of the framebuffer's final color target
	//
	// Returns:
	//   - uuid.UUID: the new camera's id
	//   - error: if the arguments disagree or allocation fails
	AddCamera(infos []CameraInfo, transforms []common.Transform, extent common.Extent, outputFormat wgpu.TextureFormat) (uuid.UUID, error)

	// Camera looks up a camera.
	//
	// Parameters:
	//   - id: the camera id
	//
	// Returns:
	//   - *CameraInstance: the camera
	//   - error: ErrCameraNotFound if the id is unknown
	Camera(id uuid.UUID) (*CameraInstance, error)

	// CameraIDs returns every camera id in the order cameras were added.
	//
	// Returns:
	//   - []uuid.UUID: the ids
	CameraIDs() []uuid.UUID

	// RemoveCamera releases a camera and forgets it.
	//
	// Parameters:
	//   - id: the camera id
	//
	// Returns:
	//   - error: ErrCameraNotFound if the id is unknown
	RemoveCamera(id uuid.UUID) error

	// ViewParamsLayout returns the layout of every camera's view bind group: one uniform buffer at
	// binding 0, visible to vertex and fragment stages.
	//
	// Returns:
	//   - gpu.BindGroupLayout: the layout
	ViewParamsLayout() gpu.BindGroupLayout

	// SetTAASampleCount sets the jitter sequence length on the system and every camera.
	// Zero disables jitter.
	//
	// Parameters:
	//   - count: the sequence length
	SetTAASampleCount(count uint32)

	// Release frees every camera and the shared layout.
	Release()
}

var _ CameraSystem = &cameraSystemImpl{}

// ViewParamsBindGroupLayoutDescriptor describes the view params group.
func ViewParamsBindGroupLayoutDescriptor() *wgpu.BindGroupLayoutDescriptor {
	return &wgpu.BindGroupLayoutDescriptor{
		Label: "View Params Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
		},
	}
}

// NewCameraSystem creates an empty camera system.
//
// Parameters:
//   - device: the device cameras allocate on
//   - options: optional builder options
//
// Returns:
//   - CameraSystem: the system
//   - error: if the shared layout cannot be created
func NewCameraSystem(device gpu.Device, options ...CameraSystemBuilderOption) (CameraSystem, error) {
	cs := &cameraSystemImpl{
		mu:          &sync.Mutex{},
		device:      device,
		logger:      common.NewNopLogger(),
		ringSize:    framebuffer.DefaultRingSize,
		sampleCount: DefaultTAASampleCount,
		cameras:     make(map[uuid.UUID]*CameraInstance),
	}
	for _, option := range options {
		option(cs)
	}

	layout, err := device.CreateBindGroupLayout(ViewParamsBindGroupLayoutDescriptor())
	if err != nil {
		return nil, fmt.Errorf("failed to create view params bind group layout: %w", err)
	}
	cs.viewLayout = layout
	return cs, nil
}

func (cs *cameraSystemImpl) AddCamera(infos []CameraInfo, transforms []common.Transform, extent common.Extent, outputFormat wgpu.TextureFormat) (uuid.UUID, error) {
	if len(infos) == 0 {
		return uuid.Nil, fmt.Errorf("camera needs at least one view")
	}
	if len(infos) != len(transforms) {
		return uuid.Nil, fmt.Errorf("camera has %d infos but %d transforms", len(infos), len(transforms))
	}
	if extent.IsZero() {
		extent = common.NewExtent(DefaultExtentSize, DefaultExtentSize)
	}
	extent.Layers = uint32(len(infos))

	cs.mu.Lock()
	defer cs.mu.Unlock()

	id := uuid.New()
	label := "Camera " + id.String()[:8]

	fb, err := framebuffer.New(cs.device, extent, outputFormat,
		framebuffer.WithRingSize(cs.ringSize),
		framebuffer.WithLabel(label),
		framebuffer.WithLogger(cs.logger),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create framebuffer for %s: %w", label, err)
	}

	uniform, err := gpu.NewUniformBuffer(cs.device, label+" View Params", uint64(ViewParamsSize*len(infos)))
	if err != nil {
		fb.Release()
		return uuid.Nil, err
	}

	group, err := cs.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  label + " View Params Bind Group",
		Layout: cs.viewLayout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, Buffer: uniform.Buffer(), Size: uniform.Size()},
		},
	})
	if err != nil {
		uniform.Release()
		fb.Release()
		return uuid.Nil, fmt.Errorf("failed to create view params bind group for %s: %w", label, err)
	}

	views := identityViews(len(infos))
	cam := &CameraInstance{
		mu:          &sync.Mutex{},
		id:          id,
		infos:       append([]CameraInfo(nil), infos...),
		poses:       append([]common.Transform(nil), transforms...),
		extent:      extent,
		previous:    views,
		emitted:     append([]ViewParams(nil), views...),
		sampleCount: cs.sampleCount,
		framebuffer: fb,
		uniform:     uniform,
		bindGroup:   group,
	}
	cs.cameras[id] = cam
	cs.order = append(cs.order, id)

	cs.logger.Debugf("added %s: %d view(s) at %dx%d", label, len(infos), extent.Width, extent.Height)
	return id, nil
}

func (cs *cameraSystemImpl) Camera(id uuid.UUID) (*CameraInstance, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cam, ok := cs.cameras[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	return cam, nil
}

func (cs *cameraSystemImpl) CameraIDs() []uuid.UUID {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]uuid.UUID(nil), cs.order...)
}

func (cs *cameraSystemImpl) RemoveCamera(id uuid.UUID) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cam, ok := cs.cameras[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	cam.Release()
	delete(cs.cameras, id)
	for i, other := range cs.order {
		if other == id {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			break
		}
	}
	cs.logger.Debugf("removed camera %s", id)
	return nil
}

func (cs *cameraSystemImpl) ViewParamsLayout() gpu.BindGroupLayout {
	return cs.viewLayout
}

func (cs *cameraSystemImpl) SetTAASampleCount(count uint32) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sampleCount = count
	for _, cam := range cs.cameras {
		cam.SetTAASampleCount(count)
	}
}

func (cs *cameraSystemImpl) Release() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, cam := range cs.cameras {
		cam.Release()
	}
	cs.cameras = make(map[uuid.UUID]*CameraInstance)
	cs.order = nil
	if cs.viewLayout != nil {
		cs.viewLayout.Release()
		cs.viewLayout = nil
	}
}
