package camera

import "github.com/Carmen-Shannon/oxy-xr/common"

// CameraSystemBuilderOption is a functional option for configuring a CameraSystem.
type CameraSystemBuilderOption func(*cameraSystemImpl)

// WithLogger sets the logger used by the system and the framebuffers it creates.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - CameraSystemBuilderOption: functional option to set the logger
func WithLogger(logger common.Logger) CameraSystemBuilderOption {
	return func(cs *cameraSystemImpl) {
		cs.logger = logger
	}
}

// WithRingSize sets the ring color buffer count of every camera's framebuffer.
//
// Parameters:
//   - size: the ring size, at least common.MinRingSize
//
// Returns:
//   - CameraSystemBuilderOption: functional option to set the ring size
func WithRingSize(size int) CameraSystemBuilderOption {
	return func(cs *cameraSystemImpl) {
		cs.ringSize = size
	}
}

// WithTAASampleCount sets the jitter sequence length new cameras start with. Zero disables jitter.
//
// Parameters:
//   - count: the sequence length
//
// Returns:
//   - CameraSystemBuilderOption: functional option to set the sample count
func WithTAASampleCount(count uint32) CameraSystemBuilderOption {
	return func(cs *cameraSystemImpl) {
		cs.sampleCount = count
	}
}
