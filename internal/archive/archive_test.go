package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePutter struct {
	bucket string
	key    string
	body   []byte
	opts   minio.PutObjectOptions
	err    error
}

func (c *capturePutter) PutObject(_ context.Context, bucket, key string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if c.err != nil {
		return minio.UploadInfo{}, c.err
	}
	c.bucket, c.key, c.opts = bucket, key, opts
	c.body, _ = io.ReadAll(reader)
	return minio.UploadInfo{Bucket: bucket, Key: key}, nil
}

func sampleInquiry() Inquiry {
	return Inquiry{
		LeadID:     uuid.MustParse("3f1c2b9e-4d5a-4e8f-9a10-2b3c4d5e6f70"),
		ClientSlug: "acme",
		Channel:    "email",
		ExternalID: "<m1@example.com>",
		From:       "jane@example.com",
		Subject:    "Quote",
		Body:       "Please send a quote",
		ReceivedAt: time.Date(2026, 2, 3, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)),
	}
}

func TestObjectKeyUsesUTCDate(t *testing.T) {
	assert.Equal(t, "acme/email/2026/02/04/3f1c2b9e-4d5a-4e8f-9a10-2b3c4d5e6f70.json", ObjectKey(sampleInquiry()))
}

func TestMinIOArchiverUploadsJSON(t *testing.T) {
	putter := &capturePutter{}
	archiver := &MinIOArchiver{client: putter, bucket: "inquiries"}

	key, err := archiver.ArchiveInquiry(context.Background(), sampleInquiry())
	require.NoError(t, err)
	assert.Equal(t, putter.key, key)
	assert.Equal(t, "inquiries", putter.bucket)
	assert.Equal(t, "application/json", putter.opts.ContentType)

	var decoded Inquiry
	require.NoError(t, json.Unmarshal(putter.body, &decoded))
	assert.Equal(t, "Please send a quote", decoded.Body)
}

func TestMinIOArchiverWrapsUploadError(t *testing.T) {
	archiver := &MinIOArchiver{client: &capturePutter{err: errors.New("access denied")}, bucket: "inquiries"}
	_, err := archiver.ArchiveInquiry(context.Background(), sampleInquiry())
	require.Error(t, err)
}
