package light

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/go-gl/mathgl/mgl32"
)

// LightComponent is the description of a light attached to an entity. SpawnLight turns it into a
// LightInstance.
type LightComponent struct {
	Type       LightType
	Color      mgl32.Vec3
	Intensity  float32
	CastShadow bool
}

// LightComponentOption is a function that configures a LightComponent during construction.
type LightComponentOption func(*LightComponent)

// NewLightComponent creates a white light of unit intensity that casts no shadow.
//
// Parameters:
//   - lightType: the light type
//   - options: functional options to configure the component
//
// Returns:
//   - LightComponent: the component
func NewLightComponent(lightType LightType, options ...LightComponentOption) LightComponent {
	c := LightComponent{
		Type:      lightType,
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 1,
	}
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightComponentOption: a function that applies the color option
func WithColor(r, g, b float32) LightComponentOption {
	return func(c *LightComponent) {
		c.Color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightComponentOption: a function that applies the intensity option
func WithIntensity(intensity float32) LightComponentOption {
	return func(c *LightComponent) {
		c.Intensity = intensity
	}
}

// WithCastShadow is an option builder that requests shadow slots for the light.
func WithCastShadow(cast bool) LightComponentOption {
	return func(c *LightComponent) {
		c.CastShadow = cast
	}
}

// LightSystemBuilderOption is a function that configures the light system during construction.
type LightSystemBuilderOption func(*lightSystemImpl)

// WithShadowQuality sets the shadow map resolution.
//
// Parameters:
//   - quality: the shadow quality
//
// Returns:
//   - LightSystemBuilderOption: a function that applies the quality option
func WithShadowQuality(quality ShadowQuality) LightSystemBuilderOption {
	return func(ls *lightSystemImpl) {
		ls.quality = quality
	}
}

// WithMaxLights sets the capacity of the light storage buffer.
func WithMaxLights(n int) LightSystemBuilderOption {
	return func(ls *lightSystemImpl) {
		if n > 0 {
			ls.maxLights = n
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger common.Logger) LightSystemBuilderOption {
	return func(ls *lightSystemImpl) {
		if logger != nil {
			ls.logger = logger
		}
	}
}
