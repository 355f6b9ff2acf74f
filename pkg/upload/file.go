package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// File is an incoming upload
type File struct {
	Filename    string
	ContentType string
	Size        int64
	open        func() (io.ReadCloser, error)
	sniffed     string
}

// Open returns a fresh reader over the file contents
func (f *File) Open() (io.ReadCloser, error) {
	return f.open()
}

// FromMultipart wraps a parsed multipart file header
func FromMultipart(fh *multipart.FileHeader) *File {
	return &File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes wraps in-memory content
func FromBytes(filename, contentType string, data []byte) *File {
	return &File{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// sniffLen is how much of a file http.DetectContentType looks at
const sniffLen = 512

// extensionsByType maps every sniffable type an upload can be stored as to
// its file extension. Stored names never take their extension from the client.
var extensionsByType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"image/x-icon":    ".ico",
	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"text/plain":      ".txt",
}

// documentExtensions may be kept from the client's filename when the content
// is an opaque binary that the declared application/* type describes
var documentExtensions = map[string]bool{
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".ods": true, ".odp": true,
}

// sniff returns the type detected from the first bytes of the content
func (f *File) sniff() string {
	if f.sniffed != "" {
		return f.sniffed
	}

	f.sniffed = "application/octet-stream"
	rc, err := f.Open()
	if err != nil {
		return f.sniffed
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(rc, head)
	f.sniffed = normalizeType(http.DetectContentType(head[:n]))
	return f.sniffed
}

func (f *File) declaredType() string {
	declared := normalizeType(f.ContentType)
	if declared == "image/jpg" || declared == "image/pjpeg" {
		return "image/jpeg"
	}
	return declared
}

func isOpaqueBinary(contentType string) bool {
	return contentType == "application/octet-stream" || contentType == "application/zip"
}

// DetectedType returns the content type sniffed from the file's first bytes.
// A declared application/* type is kept only for opaque binaries such as
// office documents, whose content carries no signature of its own.
func (f *File) DetectedType() string {
	sniffed := f.sniff()
	declared := f.declaredType()
	if isOpaqueBinary(sniffed) && strings.HasPrefix(declared, "application/") {
		return declared
	}
	return sniffed
}

// checkDeclared fails with ErrTypeMismatch when the client declared a specific
// type that the content does not have
func (f *File) checkDeclared() error {
	declared := f.declaredType()
	if declared == "" || declared == "application/octet-stream" {
		return nil
	}
	if detected := f.DetectedType(); declared != detected {
		return fmt.Errorf("%w: declared %s, content is %s", ErrTypeMismatch, declared, detected)
	}
	return nil
}

// Extension returns the extension the stored file gets, derived from the
// detected type
func (f *File) Extension() string {
	contentType := f.DetectedType()
	if ext, ok := extensionsByType[contentType]; ok {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(f.Filename)); documentExtensions[ext] &&
		normalizeType(mime.TypeByExtension(ext)) == contentType {
		return ext
	}
	return ".bin"
}

func normalizeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}

func isImage(contentType string) bool {
	return strings.HasPrefix(normalizeType(contentType), "image/")
}
