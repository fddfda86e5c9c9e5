package gpu

import "github.com/cogentcore/webgpu/wgpu"

// DeviceBuilderOption is a functional option for configuring the wgpu device.
type DeviceBuilderOption func(*wgpuDevice)

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: if true, only the fallback adapter is accepted
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithPresentMode sets the surface present mode. Fifo waits for vertical sync; Immediate does not.
//
// Parameters:
//   - mode: the present mode
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithPresentMode(mode wgpu.PresentMode) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.presentMode = mode
	}
}

// WithMaxBindGroups raises the device's bind group limit.
//
// Parameters:
//   - n: the number of bind groups a pipeline may use
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithMaxBindGroups(n uint32) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		if n > 0 {
			d.maxBindGroups = n
		}
	}
}
