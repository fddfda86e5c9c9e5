package shader

import "github.com/Carmen-Shannon/oxy-xr/common"

// PreProcessorBuilderOption is a functional option for configuring a PreProcessor.
type PreProcessorBuilderOption func(*preProcessor)

// WithIncludeModule registers an include module at construction.
//
// Parameters:
//   - name: the module name used by #include
//   - source: the module's WGSL source
//
// Returns:
//   - PreProcessorBuilderOption: the option
func WithIncludeModule(name, source string) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.modules[name] = source
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger common.Logger) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.logger = logger
	}
}
