package upload

import (
	"errors"
	"fmt"
	"io"

	"github.com/platinummonkey/pressroom/pkg/apperr"
)

var (
	// ErrTooLarge is returned when a stream exceeds its declared limit
	ErrTooLarge = errors.New("upload exceeds maximum size")
	// ErrTypeMismatch is returned when the declared content type disagrees with the content
	ErrTypeMismatch = errors.New("declared content type does not match file content")
)

// Validate checks file against c before anything is written
func Validate(file *File, c Constraints) error {
	const op = "upload.Validate"

	if file == nil {
		return apperr.Validation(op, "No file sent.")
	}
	if c.MaxBytes > 0 && file.Size > c.MaxBytes {
		return apperr.Validation(op, fmt.Sprintf("File too large. Maximum size is %s.", formatBytes(c.MaxBytes))).
			WithDetail("size", file.Size).
			WithDetail("max_bytes", c.MaxBytes)
	}

	if err := file.checkDeclared(); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "File content does not match its declared type.", err).
			WithDetail("declared_type", file.declaredType()).
			WithDetail("content_type", file.DetectedType())
	}

	contentType := file.DetectedType()
	if !c.Allows(contentType) {
		return apperr.Validation(op, fmt.Sprintf("Invalid file type %s. Allowed: %s.", contentType, c.describe())).
			WithDetail("content_type", contentType)
	}

	return nil
}

func formatBytes(n int64) string {
	if n%MB == 0 {
		return fmt.Sprintf("%dMB", n/MB)
	}
	if n%1024 == 0 {
		return fmt.Sprintf("%dKB", n/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}

// cappedReader fails with ErrTooLarge once more than limit bytes are read
type cappedReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	c.read += int64(n)
	if c.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
