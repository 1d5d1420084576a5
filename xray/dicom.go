package xray

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// IsDICOM reports whether the payload looks like a DICOM Part 10 file:
// a 128-byte preamble followed by the "DICM" magic.
func IsDICOM(data []byte) bool {
	return len(data) >= 132 && string(data[128:132]) == "DICM"
}

// decodeDICOMGrayscale parses a DICOM payload, verifies the photometric
// interpretation is monochrome and extracts the first frame as an
// image.Image. Color DICOMs (RGB, PALETTE COLOR, YBR variants) are
// rejected as not grayscale.
func decodeDICOMGrayscale(data []byte) (image.Image, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	photometric := getStringByTag(&ds, tag.PhotometricInterpretation)
	if !strings.HasPrefix(photometric, "MONOCHROME") {
		return nil, ErrNotGrayscale
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || el == nil {
		return nil, fmt.Errorf("%w: no pixel data", ErrInvalidImage)
	}

	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrInvalidImage)
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// getStringByTag extracts the first string value for the given tag from
// the dataset, using dicom.MustGetStrings on the element's value so we see
// clean values like "MONOCHROME2" instead of the verbose Element.String()
// representation.
func getStringByTag(ds *dicom.Dataset, t tag.Tag) string {
	if ds == nil {
		return ""
	}
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
