package upload

import (
	"fmt"
	"strings"
)

// MB is one mebibyte
const MB int64 = 1 << 20

// Constraints bound what a call site accepts. AllowedTypes entries are exact
// MIME types ("image/jpeg") or major types ("image").
type Constraints struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Allows reports whether contentType is accepted
func (c Constraints) Allows(contentType string) bool {
	if len(c.AllowedTypes) == 0 {
		return true
	}
	mediaType := normalizeType(contentType)
	major, _, _ := strings.Cut(mediaType, "/")
	for _, allowed := range c.AllowedTypes {
		allowed = strings.ToLower(allowed)
		if allowed == mediaType || (!strings.Contains(allowed, "/") && allowed == major) {
			return true
		}
	}
	return false
}

func (c Constraints) describe() string {
	return strings.Join(c.AllowedTypes, ", ")
}

// TransformKind selects image processing before storage
type TransformKind int

const (
	// TransformNone stores the bytes as received
	TransformNone TransformKind = iota
	// TransformFit scales down so the longest edge fits Width
	TransformFit
	// TransformCover resizes and centre-crops to exactly Width x Height
	TransformCover
)

// Transform describes image processing
type Transform struct {
	Kind   TransformKind
	Width  int
	Height int
}

func (t Transform) String() string {
	switch t.Kind {
	case TransformFit:
		return fmt.Sprintf("fit %d", t.Width)
	case TransformCover:
		return fmt.Sprintf("cover %dx%d", t.Width, t.Height)
	default:
		return "none"
	}
}

// Naming selects how stored files are named
type Naming int

const (
	// NameUUID names files <uuid><ext>
	NameUUID Naming = iota
	// NameTimestamp names files <unix millis><ext>
	NameTimestamp
)

// Spec declares one upload call site
type Spec struct {
	Field       string
	Collection  string
	Constraints Constraints
	Transform   Transform
	Naming      Naming
}

// JPEGQuality is used whenever an image is re-encoded
const JPEGQuality = 90

// Call sites
var (
	// CoverImageGate is checked by the upload validation middleware
	CoverImageGate = Constraints{
		MaxBytes:     20 * MB,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/gif"},
	}

	GenericImage = Spec{
		Field:       "file",
		Collection:  "alertImages",
		Constraints: Constraints{MaxBytes: 5 * MB, AllowedTypes: []string{"image"}},
		Naming:      NameTimestamp,
	}

	AlertAttachment = Spec{
		Field:       "attachment",
		Collection:  "alertImages",
		Constraints: Constraints{MaxBytes: 20 * MB, AllowedTypes: []string{"image", "application"}},
		Transform:   Transform{Kind: TransformFit, Width: 1024},
	}

	UnityBanner = Spec{
		Field:       "banner",
		Collection:  "unities",
		Constraints: Constraints{MaxBytes: 20 * MB, AllowedTypes: []string{"image"}},
		Transform:   Transform{Kind: TransformCover, Width: 800, Height: 600},
	}

	PostCover = Spec{
		Field:       "cover_image",
		Collection:  "posts",
		Constraints: Constraints{MaxBytes: 5 * MB, AllowedTypes: []string{"image"}},
	}

	MagazinePDF = Spec{
		Field:       "pdf",
		Collection:  "magazinesPdf",
		Constraints: Constraints{MaxBytes: 20 * MB, AllowedTypes: []string{"application/pdf"}},
	}
)
