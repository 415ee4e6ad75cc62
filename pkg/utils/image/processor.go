package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
)

// EncodeThumbnail re-encodes generated PNG bytes as lossy webp for the
// history grid. The full-size original is stored separately.
func EncodeThumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Lossless: false, Quality: 80}); err != nil {
		return nil, fmt.Errorf("could not encode webp: %v", err)
	}

	return buf.Bytes(), nil
}

// NormalizePNG decodes arbitrary uploaded image bytes and re-encodes them
// as PNG, which is what the edit endpoint of the generation provider
// accepts.
func NormalizePNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("could not encode png: %v", err)
	}

	return buf.Bytes(), nil
}
