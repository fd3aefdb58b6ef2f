package s3

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	presign []*s3.PutObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(data))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.presign = append(f.presign, in)
	return &v4.PresignedHTTPRequest{URL: "https://signed/" + aws.ToString(in.Key), Method: "PUT"}, nil
}

func newStorage(t *testing.T, fake *fakeS3, cfg Config) *AssetStorage {
	t.Helper()
	s := NewAssetStorage(fake, fake, cfg, zaptest.NewLogger(t))
	s.now = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestAssetStorage_Upload(t *testing.T) {
	fake := &fakeS3{}
	s := newStorage(t, fake, Config{Bucket: "assets", BaseURL: "https://cdn.example.com/"})

	url, err := s.Upload(context.Background(), "/renders/a.png", "image/png", strings.NewReader("png"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/renders/a.png", url)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "assets", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "renders/a.png", aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, "png", fake.bodies[0])
}

func TestAssetStorage_UploadErrors(t *testing.T) {
	s := newStorage(t, &fakeS3{}, Config{Bucket: "assets"})
	_, err := s.Upload(context.Background(), "", "image/png", strings.NewReader(""))
	assert.True(t, appErrors.IsValidation(err))

	s = newStorage(t, &fakeS3{err: assert.AnError}, Config{Bucket: "assets"})
	_, err = s.Upload(context.Background(), "a.png", "image/png", strings.NewReader(""))
	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeExternal))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAssetStorage_Presign(t *testing.T) {
	// Arrange
	fake := &fakeS3{}
	s := newStorage(t, fake, Config{Bucket: "assets", Region: "us-west-2", PresignExpiry: 10 * time.Minute})

	// Act
	up, err := s.Presign(context.Background(), `C:\photos\Product.JPG`, "image/jpeg")

	// Assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "uploads/2025/03/04/"), up.Key)
	assert.True(t, strings.HasSuffix(up.Key, ".jpg"), up.Key)
	assert.Equal(t, "https://signed/"+up.Key, up.UploadURL)
	assert.Equal(t, "https://assets.s3.us-west-2.amazonaws.com/"+up.Key, up.PublicURL)
	assert.Equal(t, time.Date(2025, 3, 4, 10, 10, 0, 0, time.UTC), up.ExpiresAt)
	require.Len(t, fake.presign, 1)
	assert.Equal(t, "image/jpeg", aws.ToString(fake.presign[0].ContentType))
}

func TestAssetStorage_PresignValidation(t *testing.T) {
	tests := []struct {
		name, file, contentType string
	}{
		{"missing file name", " ", "image/png"},
		{"missing content type", "a.png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStorage(t, &fakeS3{}, Config{Bucket: "assets"})

			_, err := s.Presign(context.Background(), tt.file, tt.contentType)

			assert.True(t, appErrors.IsValidation(err))
		})
	}
}
