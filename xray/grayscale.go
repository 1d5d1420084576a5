// Package xray validates that uploaded study images are grayscale and
// decodes them, including single-frame DICOM payloads.
package xray

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	// Register the raster formats X-ray exports arrive in.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrInvalidImage means the payload could not be decoded as any supported
// image format.
var ErrInvalidImage = errors.New("invalid or unsupported image data")

// ErrNotGrayscale means the payload decoded fine but carries color
// information, so it cannot be an X-ray.
var ErrNotGrayscale = errors.New("image is not grayscale")

// Decode decodes an uploaded image and verifies it is
// grayscale. DICOM payloads are detected by preamble and routed through
// the DICOM decoder; everything else goes through the registered raster
// decoders.
//
// Acceptance rules, cheapest check first:
//   - a natively grayscale color model (PNG gray, JPEG luma-only) passes
//     without touching pixels;
//   - single-component images pass;
//   - three-component images pass only if every pixel has R == G == B;
//   - images with an alpha or fourth channel are rejected outright.
func Decode(data []byte) (image.Image, error) {
	if IsDICOM(data) {
		return decodeDICOMGrayscale(data)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	grayModel := cfg.ColorModel == color.GrayModel || cfg.ColorModel == color.Gray16Model

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if grayModel {
		return img, nil
	}

	switch numComponents(img) {
	case 1:
		return img, nil
	case 3:
		if pixelsAreGray(img) {
			return img, nil
		}
		return nil, ErrNotGrayscale
	default:
		return nil, ErrNotGrayscale
	}
}

// numComponents reports the effective color component count of a decoded
// image: 1 for grayscale, 3 for opaque color, 4 when an alpha or extra
// channel is present.
func numComponents(img image.Image) int {
	switch v := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.CMYK:
		return 4
	case *image.YCbCr:
		return 3
	case *image.NYCbCrA:
		return 4
	case interface{ Opaque() bool }:
		if v.Opaque() {
			return 3
		}
		return 4
	default:
		return 4
	}
}

// pixelsAreGray scans the full image and reports whether every pixel has
// equal R, G and B. Short-circuits on the first colored pixel.
func pixelsAreGray(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}
