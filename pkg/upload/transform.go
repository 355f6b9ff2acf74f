package upload

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// ErrDecode wraps images that cannot be decoded
type ErrDecode struct {
	Err error
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *ErrDecode) Unwrap() error {
	return e.Err
}

// applyTransform decodes r, resizes it per t and returns JPEG bytes
func applyTransform(r io.Reader, t Transform) ([]byte, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ErrDecode{Err: err}
	}

	var out image.Image
	switch t.Kind {
	case TransformFit:
		height := t.Height
		if height == 0 {
			height = t.Width
		}
		out = imaging.Fit(src, t.Width, height, imaging.Lanczos)
	case TransformCover:
		out = imaging.Fill(src, t.Width, t.Height, imaging.Center, imaging.Lanczos)
	default:
		out = src
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
