package imageprep

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareDownscalesLongestSide(t *testing.T) {
	prepared, err := Prepare(bytes.NewReader(pngOf(t, 400, 200)), 100, 80)
	require.NoError(t, err)

	assert.Equal(t, 100, prepared.Width)
	assert.Equal(t, 50, prepared.Height)
	assert.Equal(t, "image/jpeg", prepared.MIMEType)

	decoded, err := jpeg.Decode(bytes.NewReader(prepared.Bytes))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())

	raw, err := base64.StdEncoding.DecodeString(prepared.Base64)
	require.NoError(t, err)
	assert.Equal(t, prepared.Bytes, raw)
	assert.True(t, strings.HasPrefix(prepared.DataURI(), "data:image/jpeg;base64,"))
}

func TestPrepareKeepsSmallImages(t *testing.T) {
	prepared, err := Prepare(bytes.NewReader(pngOf(t, 30, 60)), 1024, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, prepared.Width)
	assert.Equal(t, 60, prepared.Height)
}

func TestPrepareRejectsBadInput(t *testing.T) {
	_, err := Prepare(bytes.NewReader(nil), 100, 80)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Prepare(strings.NewReader("definitely not an image"), 100, 80)
	assert.Error(t, err)
}
