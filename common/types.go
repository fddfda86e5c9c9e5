// Package common contains plain types and math shared across the engine. They are not interface-wrapped structs,
// just plain values that express commonly used data.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Extent is a texture or viewport size. Layers is 1 for mono targets and 2 for stereo.
type Extent struct {
	Width  uint32
	Height uint32
	Layers uint32
}

// NewExtent returns a single-layer extent.
func NewExtent(width, height uint32) Extent {
	return Extent{Width: width, Height: height, Layers: 1}
}

// IsZero reports whether either dimension is zero.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// LayerCount returns Layers, treating zero as one.
func (e Extent) LayerCount() uint32 {
	return max(e.Layers, 1)
}

// Size3D converts the extent to a wgpu texture size.
func (e Extent) Size3D() wgpu.Extent3D {
	return wgpu.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: e.LayerCount()}
}

// Transform is a position, orientation and scale in world space.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// IdentityTransform returns a transform at the origin with no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns the model matrix translate * rotate * scale.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// Forward returns the rotated -Z axis.
func (t Transform) Forward() mgl32.Vec3 {
	return t.Rotation.Normalize().Rotate(Forward)
}

// Up returns the rotated +Y axis.
func (t Transform) Up() mgl32.Vec3 {
	return t.Rotation.Normalize().Rotate(AxisY)
}

// ViewDirection is a world-space position and the direction it faces. Lights are placed with one.
type ViewDirection struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
}

// TextureSource identifies an image to decode, either from bytes in memory or a file path.
type TextureSource struct {
	// Name identifies the texture in errors and logs.
	Name string

	// Path is the file path for external images. Ignored when Data is set.
	Path string

	// Data holds encoded image bytes (PNG, JPEG, or any registered format).
	Data []byte
}

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SolidTexture returns a 1x1 texture of a single RGBA color.
func SolidTexture(r, g, b, a uint8) TextureStagingData {
	return TextureStagingData{Pixels: []byte{r, g, b, a}, Width: 1, Height: 1}
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify addressing outside the [0, 1] range.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
}

// Decode decodes the source to RGBA pixel data.
// Uses the in-memory Data when present, otherwise reads Path from disk.
// Any format registered with the image package is accepted.
//
// Returns:
//   - TextureStagingData: the decoded pixels and size
//   - error: if the source is empty, unreadable, or not a known image format
func (s TextureSource) Decode() (TextureStagingData, error) {
	var img image.Image
	var err error

	switch {
	case len(s.Data) > 0:
		img, _, err = image.Decode(bytes.NewReader(s.Data))
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode texture %q: %w", s.Name, err)
		}
	case s.Path != "":
		file, openErr := os.Open(s.Path)
		if openErr != nil {
			return TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", s.Path, openErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode texture file %s: %w", s.Path, err)
		}
	default:
		return TextureStagingData{}, fmt.Errorf("texture %q has neither data nor path", s.Name)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
