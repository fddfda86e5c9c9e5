package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTextureSourceDecodeData(t *testing.T) {
	data := encodePNG(t, 3, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	staged, err := TextureSource{Name: "albedo", Data: data}.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), staged.Width)
	assert.Equal(t, uint32(2), staged.Height)
	assert.Len(t, staged.Pixels, 3*2*4)
	assert.Equal(t, []byte{10, 20, 30, 255}, staged.Pixels[:4])
}

func TestTextureSourceDecodePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 1, 1, color.RGBA{A: 255}), 0o644))

	staged, err := TextureSource{Path: path}.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), staged.Width)
}

func TestTextureSourceDecodeErrors(t *testing.T) {
	_, err := TextureSource{Name: "empty"}.Decode()
	assert.Error(t, err)

	_, err = TextureSource{Name: "junk", Data: []byte("not an image")}.Decode()
	assert.Error(t, err)

	_, err = TextureSource{Path: filepath.Join(t.TempDir(), "missing.png")}.Decode()
	assert.Error(t, err)
}

func TestTransformAxes(t *testing.T) {
	tr := IdentityTransform()
	assert.True(t, tr.Forward().ApproxEqual(Forward))
	assert.True(t, tr.Up().ApproxEqual(AxisY))

	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), AxisY)
	assert.True(t, tr.Forward().ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5))

	tr.Position = mgl32.Vec3{1, 2, 3}
	m := tr.Matrix()
	assert.True(t, m.Col(3).ApproxEqual(mgl32.Vec4{1, 2, 3, 1}))
}

func TestExtent(t *testing.T) {
	e := Extent{Width: 4, Height: 2}
	assert.Equal(t, uint32(1), e.LayerCount())
	assert.False(t, e.IsZero())
	assert.True(t, Extent{Width: 4}.IsZero())
	assert.Equal(t, uint32(2), Extent{Width: 1, Height: 1, Layers: 2}.Size3D().DepthOrArrayLayers)
}
