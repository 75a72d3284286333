package imagecodec

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(16, 12, color.NRGBA{R: 40, G: 120, B: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestReencodeJPEG_ProducesJPEG(t *testing.T) {
	out, err := ReencodeJPEG(context.Background(), pngFixture(t))
	require.NoError(t, err)

	// JPEG SOI marker
	require.GreaterOrEqual(t, len(out), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, out[:2])

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
}

func TestReencodeJPEG_Deterministic(t *testing.T) {
	raw := pngFixture(t)
	a, err := ReencodeJPEG(context.Background(), raw)
	require.NoError(t, err)
	b, err := ReencodeJPEG(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, Base64(a), Base64(b))
}

func TestReencodeJPEG_InvalidData(t *testing.T) {
	_, err := ReencodeJPEG(context.Background(), []byte("not an image"))
	assert.Error(t, err)
}

func TestReencodeJPEG_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReencodeJPEG(ctx, pngFixture(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBase64_StdAlphabet(t *testing.T) {
	data := []byte{0xfb, 0xff, 0x01}
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), Base64(data))
	assert.Equal(t, "+/8B", Base64(data))
}
