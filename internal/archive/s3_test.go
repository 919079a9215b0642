package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		user     string
		filename string
		want     string
	}{
		{"csv", "uploads/", "u1", "Feed.CSV", "uploads/u1/id-1.csv"},
		{"xlsx", "", "u1", "path/to/book.xlsx", "u1/id-1.xlsx"},
		{"no extension", "raw/", "u1", "feed", "raw/u1/id-1"},
		{"no user", "raw/", "", "feed.csv", "raw/anonymous/id-1.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(tt.prefix, tt.user, tt.filename, "id-1"))
		})
	}
}

func TestUpload(t *testing.T) {
	fake := &fakePutter{}
	a := newS3(fake, "bucket", "uploads/")
	a.newID = func() string { return "fixed" }

	key, err := a.Upload(context.Background(), "u1", "feed.csv", []byte("Name\nLamp\n"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/u1/fixed.csv", key)

	require.NotNil(t, fake.input)
	assert.Equal(t, "bucket", aws.ToString(fake.input.Bucket))
	assert.Equal(t, key, aws.ToString(fake.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(fake.input.ContentType))
	assert.Equal(t, "feed.csv", fake.input.Metadata["original-filename"])
	assert.Equal(t, "Name\nLamp\n", string(fake.body))
}

func TestUploadFailure(t *testing.T) {
	a := newS3(&fakePutter{err: errors.New("access denied")}, "bucket", "")

	_, err := a.Upload(context.Background(), "u1", "feed.xlsx", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExternalServiceFailure, apperrors.KindOf(err))
	assert.ErrorContains(t, err, "access denied")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/vnd.ms-excel", contentType("a.xls"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}
