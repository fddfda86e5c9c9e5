package shader

import (
	"embed"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/assets"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
)

//go:embed assets
var embeddedShaders embed.FS

// Shader names in the embedded library.
const (
	GBufferShader          = "gbuffer"
	ShadowShader           = "shadow"
	DeferredLightingShader = "postproc::deferred_lighting"
	BloomShader            = "postproc::bloom"
	SharpenShader          = "postproc::sharpen"
	TAAShader              = "postproc::taa"
	TonemapShader          = "postproc::tonemap"
	CopySwapchainShader    = "postproc::copy_swapchain"
)

// library is the implementation of the Library interface.
type library struct {
	mu       *sync.Mutex
	pp       PreProcessor
	watchers []func(name string)
	logger   common.Logger
}

// Library holds every engine shader as a named module. Any module can be built as a root source
// or pulled in by #include from another.
type Library interface {
	// Build preprocesses the named module.
	//
	// Parameters:
	//   - name: the module name, e.g. "postproc::bloom"
	//   - defs: caller defines
	//
	// Returns:
	//   - ModuleSource: the expanded source, labeled with the name and defines
	//   - error: ErrIncludeNotFound if the module is unknown, or any preprocess error
	Build(name string, defs map[string]Value) (ModuleSource, error)

	// Module builds the named module and creates a shader module from it.
	//
	// Parameters:
	//   - device: the device to create the module on
	//   - name: the module name
	//   - defs: caller defines
	//
	// Returns:
	//   - gpu.ShaderModule: the created module
	//   - Reflection: entry points and vertex layouts of the built source
	//   - error: error if preprocessing or module creation fails
	Module(device gpu.Device, name string, defs map[string]Value) (gpu.ShaderModule, Reflection, error)

	// Source returns the raw source of a module.
	Source(name string) (string, bool)

	// Names returns every module name in sorted order.
	Names() []string

	// Override replaces a module's source and notifies every OnChange callback.
	//
	// Parameters:
	//   - name: the module name
	//   - source: the new source
	Override(name, source string)

	// OnChange registers a callback run after each Override.
	OnChange(fn func(name string))
}

var _ Library = &library{}

// NewLibrary creates a Library preloaded with the embedded engine shaders.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - Library: the library
//   - error: error if the embedded shaders cannot be read
func NewLibrary(options ...LibraryBuilderOption) (Library, error) {
	l := &library{
		mu:     &sync.Mutex{},
		logger: common.NewNopLogger(),
	}
	for _, opt := range options {
		opt(l)
	}

	sources, err := assets.LoadShaderDir(embeddedShaders, "assets")
	if err != nil {
		return nil, err
	}
	l.pp = NewPreProcessor(WithLogger(l.logger))
	for name, src := range sources {
		l.pp.AddIncludeModule(name, src)
	}
	return l, nil
}

func (l *library) Build(name string, defs map[string]Value) (ModuleSource, error) {
	src, ok := l.pp.IncludeModule(name)
	if !ok {
		return ModuleSource{}, &PreprocessError{Kind: ErrIncludeNotFound, Label: name, Key: name}
	}
	return l.pp.Build(src, defs, moduleLabel(name, defs))
}

func (l *library) Module(device gpu.Device, name string, defs map[string]Value) (gpu.ShaderModule, Reflection, error) {
	src, err := l.Build(name, defs)
	if err != nil {
		return nil, Reflection{}, err
	}
	module, err := device.CreateShaderModule(&gpu.ShaderModuleDescriptor{Label: src.Label, Code: src.Code})
	if err != nil {
		return nil, Reflection{}, fmt.Errorf("failed to create shader module %s: %w", src.Label, err)
	}
	return module, Reflect(src.Code), nil
}

func (l *library) Source(name string) (string, bool) {
	return l.pp.IncludeModule(name)
}

func (l *library) Names() []string {
	return l.pp.IncludeModules()
}

func (l *library) Override(name, source string) {
	l.pp.AddIncludeModule(name, source)

	l.mu.Lock()
	watchers := slices.Clone(l.watchers)
	l.mu.Unlock()

	l.logger.Infof("shader module %s overridden", name)
	for _, fn := range watchers {
		fn(name)
	}
}

func (l *library) OnChange(fn func(name string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}

// moduleLabel renders "name[KEY=value,...]" with keys sorted.
func moduleLabel(name string, defs map[string]Value) string {
	if len(defs) == 0 {
		return name
	}
	keys := slices.Sorted(maps.Keys(defs))
	parts := make([]string, len(keys))
	for i, k := range keys {
		if defs[k].Kind() == ValueDef {
			parts[i] = k
			continue
		}
		parts[i] = k + "=" + defs[k].String()
	}
	return name + "[" + strings.Join(parts, ",") + "]"
}
