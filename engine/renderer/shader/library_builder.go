package shader

import "github.com/Carmen-Shannon/oxy-xr/common"

// LibraryBuilderOption is a functional option for configuring a Library.
type LibraryBuilderOption func(*library)

// WithLibraryLogger sets the logger used by the Library and its preprocessor.
func WithLibraryLogger(logger common.Logger) LibraryBuilderOption {
	return func(l *library) {
		l.logger = logger
	}
}
