package upload

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/apperr"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T) (*Pipeline, Mapper) {
	t.Helper()
	mapper := NewMapper("", t.TempDir())
	backend, err := NewLocalBackend(mapper)
	require.NoError(t, err)
	return NewPipeline(backend, mapper), mapper
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func TestPipeline_StoreCoverTransform(t *testing.T) {
	p, mapper := newTestPipeline(t)

	stored, err := p.Store(context.Background(), FromBytes("banner.png", "image/png", pngBytes(t, 1600, 900)), UnityBanner)
	require.NoError(t, err)

	assert.Equal(t, "unities", stored.Location.Collection)
	assert.True(t, strings.HasSuffix(stored.Location.Name, ".jpg"))
	assert.Equal(t, "/uploads/unities/"+stored.Location.Name, stored.URL)
	assert.Equal(t, "image/jpeg", stored.ContentType)

	f, err := os.Open(mapper.Path(stored.Location))
	require.NoError(t, err)
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
}

func TestPipeline_StoreFitTransform(t *testing.T) {
	p, mapper := newTestPipeline(t)

	stored, err := p.Store(context.Background(), FromBytes("wide.png", "image/png", pngBytes(t, 2048, 512)), AlertAttachment)
	require.NoError(t, err)

	f, err := os.Open(mapper.Path(stored.Location))
	require.NoError(t, err)
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 256, cfg.Height)
}

func TestPipeline_StoreAttachmentNonImageCopiedRaw(t *testing.T) {
	p, mapper := newTestPipeline(t)
	payload := []byte("%PDF-1.4 attachment body")

	stored, err := p.Store(context.Background(), FromBytes("Notice.PDF", "application/pdf", payload), AlertAttachment)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Location.Name, ".pdf"))

	data, err := os.ReadFile(mapper.Path(stored.Location))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestPipeline_StoreTimestampName(t *testing.T) {
	mapper := NewMapper("https://cms.example.com", t.TempDir())
	backend, err := NewLocalBackend(mapper)
	require.NoError(t, err)

	fixed := time.UnixMilli(1717171717171)
	p := NewPipeline(backend, mapper, WithNow(func() time.Time { return fixed }))

	stored, err := p.Store(context.Background(), FromBytes("a.png", "image/png", pngBytes(t, 2, 2)), GenericImage)
	require.NoError(t, err)
	assert.Equal(t, "1717171717171.png", stored.Location.Name)
	assert.Equal(t, "https://cms.example.com/uploads/alertImages/1717171717171.png", stored.URL)
}

func TestPipeline_OversizeRejectedBeforeWrite(t *testing.T) {
	p, mapper := newTestPipeline(t)

	file := &File{
		Filename:    "huge.jpg",
		ContentType: "image/jpeg",
		Size:        25 * MB,
		open: func() (io.ReadCloser, error) {
			t.Fatal("file must not be read")
			return nil, nil
		},
	}

	_, err := p.Store(context.Background(), file, UnityBanner)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, countFiles(t, filepath.Join(mapper.Root, "unities")))
}

func TestPipeline_StreamCapAbortsWrite(t *testing.T) {
	p, mapper := newTestPipeline(t)
	spec := MagazinePDF
	spec.Constraints.MaxBytes = 64

	// declared size lies about the body
	body := append([]byte("%PDF-1.4"), make([]byte, 200)...)
	file := &File{
		Filename:    "m.pdf",
		ContentType: "application/pdf",
		Size:        10,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}

	_, err := p.Store(context.Background(), file, spec)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, countFiles(t, filepath.Join(mapper.Root, "magazinesPdf")))
}

func TestPipeline_UndecodableImage(t *testing.T) {
	p, _ := newTestPipeline(t)

	data := append([]byte{0xFF, 0xD8, 0xFF}, "not really a jpeg"...)
	_, err := p.Store(context.Background(), FromBytes("x.jpg", "image/jpeg", data), UnityBanner)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Failed to process image.", apperr.PublicMessage(err))
}

func TestPipeline_ReplaceDeletesPrevious(t *testing.T) {
	p, mapper := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Store(ctx, FromBytes("a.png", "image/png", pngBytes(t, 900, 700)), UnityBanner)
	require.NoError(t, err)

	second, err := p.Replace(ctx, &first.Location, FromBytes("b.png", "image/png", pngBytes(t, 900, 700)), UnityBanner)
	require.NoError(t, err)

	assert.NotEqual(t, first.Location, second.Location)
	_, err = os.Stat(mapper.Path(first.Location))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(mapper.Path(second.Location))
	assert.NoError(t, err)
}

func TestPipeline_ReplaceMissingPrevious(t *testing.T) {
	p, _ := newTestPipeline(t)

	missing := Location{Collection: "unities", Name: "gone.jpg"}
	stored, err := p.Replace(context.Background(), &missing, FromBytes("b.png", "image/png", pngBytes(t, 10, 10)), UnityBanner)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.URL)
}

func TestPipeline_ReplaceInvalidKeepsPrevious(t *testing.T) {
	p, mapper := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Store(ctx, FromBytes("a.png", "image/png", pngBytes(t, 10, 10)), UnityBanner)
	require.NoError(t, err)

	_, err = p.Replace(ctx, &first.Location, sizedFile("big.png", "image/png", 25*MB), UnityBanner)
	require.Error(t, err)

	_, err = os.Stat(mapper.Path(first.Location))
	assert.NoError(t, err, "previous file must survive a rejected replacement")
}

func TestPipeline_ReplaceUndecodableKeepsPrevious(t *testing.T) {
	p, mapper := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Store(ctx, FromBytes("a.png", "image/png", pngBytes(t, 10, 10)), UnityBanner)
	require.NoError(t, err)

	// a valid PNG signature followed by a corrupt body passes validation
	broken := append([]byte("\x89PNG\r\n\x1a\n"), "corrupt chunk data"...)
	_, err = p.Replace(ctx, &first.Location, FromBytes("b.png", "image/png", broken), UnityBanner)
	require.Error(t, err)
	assert.Equal(t, "Failed to process image.", apperr.PublicMessage(err))

	_, err = os.Stat(mapper.Path(first.Location))
	assert.NoError(t, err, "previous file must survive a failed replacement")
	assert.Equal(t, 1, countFiles(t, filepath.Dir(mapper.Path(first.Location))))
}

func TestPipeline_ReplaceRemovesPrevious(t *testing.T) {
	p, mapper := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Store(ctx, FromBytes("a.png", "image/png", pngBytes(t, 10, 10)), UnityBanner)
	require.NoError(t, err)
	second, err := p.Replace(ctx, &first.Location, FromBytes("b.png", "image/png", pngBytes(t, 12, 12)), UnityBanner)
	require.NoError(t, err)

	_, err = os.Stat(mapper.Path(first.Location))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(mapper.Path(second.Location))
	assert.NoError(t, err)
}

func TestPipeline_DeleteAndOpen(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	stored, err := p.Store(ctx, FromBytes("doc.pdf", "application/pdf", []byte("%PDF-1.4")), MagazinePDF)
	require.NoError(t, err)

	rc, info, err := p.Open(ctx, stored.Location)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", info.ContentType)

	p.Delete(ctx, stored.Location)
	p.Delete(ctx, stored.Location) // already gone: logged, not fatal
	p.Delete(ctx, Location{})

	_, _, err = p.Open(ctx, stored.Location)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLocalBackend_RejectsTraversal(t *testing.T) {
	mapper := NewMapper("", t.TempDir())
	backend, err := NewLocalBackend(mapper)
	require.NoError(t, err)

	_, err = backend.Put(context.Background(), Location{Collection: "..", Name: "x"}, strings.NewReader("x"), "text/plain")
	assert.Error(t, err)

	_, _, err = backend.Open(context.Background(), Location{Collection: "unities", Name: "../../etc/passwd"})
	assert.ErrorIs(t, err, ErrNotExist)

	assert.NoError(t, backend.Ping(context.Background()))
}

func TestNewLocalBackend_RequiresRoot(t *testing.T) {
	_, err := NewLocalBackend(Mapper{})
	assert.Error(t, err)
}
