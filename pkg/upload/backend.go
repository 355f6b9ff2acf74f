package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotExist is returned by backends for missing files
var ErrNotExist = errors.New("upload does not exist")

// ObjectInfo describes a stored file
type ObjectInfo struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Backend stores upload bytes
type Backend interface {
	// Put writes r at loc and returns the number of bytes written.
	// A failed Put leaves nothing behind.
	Put(ctx context.Context, loc Location, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, loc Location) (io.ReadCloser, *ObjectInfo, error)
	// Delete removes loc, returning ErrNotExist when it is absent
	Delete(ctx context.Context, loc Location) error
	Ping(ctx context.Context) error
}

// LocalBackend stores files under a root directory
type LocalBackend struct {
	mapper Mapper
}

// NewLocalBackend creates the root directory if needed
func NewLocalBackend(mapper Mapper) (*LocalBackend, error) {
	if mapper.Root == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	if err := os.MkdirAll(mapper.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &LocalBackend{mapper: mapper}, nil
}

// Put implements Backend. Content is written to a temp file and renamed into place.
func (b *LocalBackend) Put(ctx context.Context, loc Location, r io.Reader, contentType string) (int64, error) {
	if err := loc.Validate(); err != nil {
		return 0, err
	}

	target := b.mapper.Path(loc)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move upload into place: %w", err)
	}

	return written, nil
}

// Open implements Backend
func (b *LocalBackend) Open(ctx context.Context, loc Location) (io.ReadCloser, *ObjectInfo, error) {
	if err := loc.Validate(); err != nil {
		return nil, nil, ErrNotExist
	}

	f, err := os.Open(b.mapper.Path(loc))
	if os.IsNotExist(err) {
		return nil, nil, ErrNotExist
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat upload: %w", err)
	}
	if stat.IsDir() {
		f.Close()
		return nil, nil, ErrNotExist
	}

	return f, &ObjectInfo{
		Size:        stat.Size(),
		ContentType: contentTypeOf(loc.Name),
		ModTime:     stat.ModTime(),
	}, nil
}

// Delete implements Backend
func (b *LocalBackend) Delete(ctx context.Context, loc Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	err := os.Remove(b.mapper.Path(loc))
	if os.IsNotExist(err) {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

// Ping checks the root is writable
func (b *LocalBackend) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(b.mapper.Root, ".ping-*")
	if err != nil {
		return fmt.Errorf("upload root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func contentTypeOf(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// contextReader stops copying once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
