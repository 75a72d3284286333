// Package imagecodec re-encodes fetched photographs into the text-safe form returned to clients.
package imagecodec

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"

	// Extra decoders: providers occasionally answer with these formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the quality used for every re-encoded frame.
const JPEGQuality = 95

// JPEGMIMEType is the content type of ReencodeJPEG output.
const JPEGMIMEType = "image/jpeg"

// ReencodeJPEG decodes raw image bytes in any registered format and encodes them as JPEG.
// The output is deterministic for a given input.
func ReencodeJPEG(ctx context.Context, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64 returns the standard base64 encoding of data.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
