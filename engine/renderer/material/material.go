// Package material holds the surface materials drawn into the G-buffer. Each material owns a params
// uniform, a sampler and its albedo and normal textures in one bind group, and selects one of the G-buffer
// pipeline variants by which maps it has.
package material

import (
	"errors"
	"maps"
	"strings"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/google/uuid"
)

// ErrMaterialNotFound is returned when no material is registered under an asset id.
var ErrMaterialNotFound = errors.New("material not found")

// Params are the constant surface properties of a material.
type Params struct {
	// BaseColor is the linear RGBA base color. It multiplies the albedo map when one is set.
	BaseColor [4]float32
	// Emissive is the RGB emissive color with strength in A.
	Emissive [4]float32
	// Metallic is 0 for dielectrics and 1 for metals.
	Metallic float32
	// Roughness is 0 for a mirror and 1 for a fully rough surface.
	Roughness float32
	// Occlusion is the ambient occlusion factor.
	Occlusion float32
	// NormalScale scales the normal map's tangent-space XY.
	NormalScale float32
}

// DefaultParams returns an opaque white dielectric with no emission.
func DefaultParams() Params {
	return Params{
		BaseColor:   [4]float32{1, 1, 1, 1},
		Roughness:   0.5,
		Occlusion:   1,
		NormalScale: 1,
	}
}

// ToGPU converts the params to the uniform layout.
func (p Params) ToGPU() GPUMaterialParams {
	return GPUMaterialParams{
		BaseColor:   p.BaseColor,
		Emissive:    p.Emissive,
		Metallic:    p.Metallic,
		Roughness:   p.Roughness,
		Occlusion:   p.Occlusion,
		NormalScale: p.NormalScale,
	}
}

// Variant selects a G-buffer shader variant.
type Variant struct {
	HasAlbedoMap bool
	HasNormalMap bool
}

// Variants lists every variant in key order.
var Variants = []Variant{{}, {HasAlbedoMap: true}, {HasNormalMap: true}, {HasAlbedoMap: true, HasNormalMap: true}}

// Key returns a stable name for the variant, e.g. "gbuffer+albedo+normal".
func (v Variant) Key() string {
	var b strings.Builder
	b.WriteString(shader.GBufferShader)
	if v.HasAlbedoMap {
		b.WriteString("+albedo")
	}
	if v.HasNormalMap {
		b.WriteString("+normal")
	}
	return b.String()
}

// Defines returns the shader defines that select the variant.
func (v Variant) Defines() map[string]shader.Value {
	defs := map[string]shader.Value{}
	if v.HasAlbedoMap {
		defs["HAS_ALBEDO_MAP"] = shader.Def()
	}
	if v.HasNormalMap {
		defs["HAS_NORMAL_MAP"] = shader.Def()
	}
	return defs
}

// material is the implementation of the Material interface.
type material struct {
	assetID uuid.UUID
	label   string
	params  Params
	variant Variant

	uniform   *gpu.TypedBuffer
	sampler   gpu.Sampler
	textures  []gpu.Texture
	views     []gpu.TextureView
	bindGroup gpu.BindGroup
}

// Material is a registered surface material and its GPU resources.
type Material interface {
	// AssetID returns the id the material is registered and grouped under.
	AssetID() uuid.UUID

	// Label returns the debug label of the material.
	Label() string

	// Params returns the surface properties the uniform was written from.
	Params() Params

	// Variant returns the G-buffer pipeline variant the material draws with.
	Variant() Variant

	// BindGroup returns the material bind group: params uniform, sampler, albedo and normal maps.
	BindGroup() gpu.BindGroup

	// Release frees the material's GPU resources.
	Release()
}

var _ Material = &material{}

func (m *material) AssetID() uuid.UUID {
	return m.assetID
}

func (m *material) Label() string {
	return m.label
}

func (m *material) Params() Params {
	return m.params
}

func (m *material) Variant() Variant {
	return m.variant
}

func (m *material) BindGroup() gpu.BindGroup {
	return m.bindGroup
}

func (m *material) Release() {
	if m.bindGroup != nil {
		m.bindGroup.Release()
	}
	for _, v := range m.views {
		v.Release()
	}
	for _, t := range m.textures {
		t.Release()
	}
	if m.sampler != nil {
		m.sampler.Release()
	}
	if m.uniform != nil {
		m.uniform.Release()
	}
}

// defines merges the variant defines into base without modifying either.
func defines(base map[string]shader.Value, v Variant) map[string]shader.Value {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]shader.Value{}
	}
	maps.Copy(out, v.Defines())
	return out
}
