package gpu

import "errors"

var (
	// ErrTargetTypeMismatch is returned when color ops are requested from a depth target or the reverse.
	ErrTargetTypeMismatch = errors.New("render target type mismatch")

	// ErrBufferTooSmall is returned when a write would run past the end of a buffer.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrForeignHandle is returned when a handle from another backend is passed to a device.
	ErrForeignHandle = errors.New("handle does not belong to this device")

	// ErrMultiviewUnsupported is returned when a backend cannot build multiview pipelines.
	ErrMultiviewUnsupported = errors.New("multiview pipelines are not supported by this backend")
)
