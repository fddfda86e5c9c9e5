package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeAllKeepsInputOrder(t *testing.T) {
	d := NewTextureDecoder(4)
	defer d.Close()

	var sources []common.TextureSource
	for i := 1; i <= 12; i++ {
		sources = append(sources, common.TextureSource{
			Name: "tex",
			Data: encodePNG(t, i, 1, color.RGBA{R: uint8(i), A: 255}),
		})
	}

	out, err := d.DecodeAll(sources)
	require.NoError(t, err)
	require.Len(t, out, len(sources))
	for i, tex := range out {
		assert.Equal(t, uint32(i+1), tex.Width)
		assert.Equal(t, uint32(1), tex.Height)
		assert.Equal(t, uint8(i+1), tex.Pixels[0])
	}
}

func TestDecodeAllReportsFirstFailure(t *testing.T) {
	d := NewTextureDecoder(2)
	defer d.Close()

	_, err := d.DecodeAll([]common.TextureSource{
		{Name: "ok", Data: encodePNG(t, 2, 2, color.RGBA{A: 255})},
		{Name: "broken", Data: []byte("not an image")},
		{Name: "also-broken", Data: []byte("nope")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
}

func TestDecodeAllEmpty(t *testing.T) {
	d := NewTextureDecoder(0)
	defer d.Close()

	out, err := d.DecodeAll(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
