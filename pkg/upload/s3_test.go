package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu            sync.Mutex
	objects       map[string][]byte
	contentTypes  map[string]string
	putErr        error
	headBucketErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), contentTypes: make(map[string]string)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(f.contentTypes[aws.ToString(in.Key)]),
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headBucketErr
}

func TestS3Backend_Lifecycle(t *testing.T) {
	fake := newFakeS3()
	backend := newS3Backend(fake, "pressroom", "media")
	ctx := context.Background()
	loc := Location{Collection: "magazinesPdf", Name: "issue.pdf"}

	n, err := backend.Put(ctx, loc, strings.NewReader("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Contains(t, fake.objects, "media/magazinesPdf/issue.pdf")

	rc, info, err := backend.Open(ctx, loc)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, int64(8), info.Size)

	require.NoError(t, backend.Delete(ctx, loc))
	assert.ErrorIs(t, backend.Delete(ctx, loc), ErrNotExist)

	_, _, err = backend.Open(ctx, loc)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestS3Backend_PutFailure(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	backend := newS3Backend(fake, "pressroom", "")

	_, err := backend.Put(context.Background(), Location{Collection: "posts", Name: "a.jpg"}, strings.NewReader("x"), "image/jpeg")
	assert.ErrorContains(t, err, "failed to upload to s3")
}

func TestS3Backend_Ping(t *testing.T) {
	fake := newFakeS3()
	backend := newS3Backend(fake, "pressroom", "")
	assert.NoError(t, backend.Ping(context.Background()))

	fake.headBucketErr = errors.New("no such bucket")
	assert.ErrorContains(t, backend.Ping(context.Background()), "s3 health check failed")
}

func TestS3Backend_WithPipeline(t *testing.T) {
	fake := newFakeS3()
	mapper := NewMapper("https://cdn.example.com", "")
	p := NewPipeline(newS3Backend(fake, "pressroom", ""), mapper)

	stored, err := p.Store(context.Background(), FromBytes("b.png", "image/png", pngBytes(t, 1000, 800)), UnityBanner)
	require.NoError(t, err)
	assert.Contains(t, fake.objects, stored.Location.Key())
	assert.Equal(t, "image/jpeg", fake.contentTypes[stored.Location.Key()])
	assert.Equal(t, "https://cdn.example.com/uploads/"+stored.Location.Key(), stored.URL)
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, isNotFoundError(nil))
	assert.True(t, isNotFoundError(&types.NoSuchKey{}))
	assert.True(t, isNotFoundError(&types.NotFound{}))
	assert.False(t, isNotFoundError(errors.New("NotFound in text only")))
}

func TestNewS3Backend_RequiresBucket(t *testing.T) {
	_, err := NewS3Backend(context.Background(), S3Config{})
	assert.Error(t, err)
}
