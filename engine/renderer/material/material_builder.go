package material

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/google/uuid"
)

// materialOptions collects the per-material options of Register.
type materialOptions struct {
	assetID uuid.UUID
	label   string
	albedo  *common.TextureStagingData
	normal  *common.TextureStagingData
	sampler *common.SamplerStagingData
}

// MaterialOption configures a material during Register.
type MaterialOption func(*materialOptions)

// WithAssetID registers the material under a known asset id instead of a generated one.
//
// Parameters:
//   - id: the asset id render items are grouped by
//
// Returns:
//   - MaterialOption: a function that applies the asset id option
func WithAssetID(id uuid.UUID) MaterialOption {
	return func(o *materialOptions) {
		o.assetID = id
	}
}

// WithLabel is an option builder that sets the debug label of the material and its GPU resources.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - MaterialOption: a function that applies the label option
func WithLabel(label string) MaterialOption {
	return func(o *materialOptions) {
		o.label = label
	}
}

// WithAlbedoMap sets the albedo texture, uploaded as sRGB. It selects the HAS_ALBEDO_MAP variant.
//
// Parameters:
//   - data: the decoded RGBA pixels
//
// Returns:
//   - MaterialOption: a function that applies the albedo map option
func WithAlbedoMap(data common.TextureStagingData) MaterialOption {
	return func(o *materialOptions) {
		o.albedo = &data
	}
}

// WithNormalMap sets the tangent-space normal map, uploaded as linear. It selects the HAS_NORMAL_MAP variant.
//
// Parameters:
//   - data: the decoded RGBA pixels
//
// Returns:
//   - MaterialOption: a function that applies the normal map option
func WithNormalMap(data common.TextureStagingData) MaterialOption {
	return func(o *materialOptions) {
		o.normal = &data
	}
}

// WithSampler gives the material its own sampler instead of the registry's shared linear repeat sampler.
func WithSampler(data common.SamplerStagingData) MaterialOption {
	return func(o *materialOptions) {
		o.sampler = &data
	}
}

// RegistryBuilderOption is a functional option for configuring a Registry.
type RegistryBuilderOption func(*registry)

// WithLogger sets the logger used by the registry and its pipeline cache.
func WithLogger(logger common.Logger) RegistryBuilderOption {
	return func(r *registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}
