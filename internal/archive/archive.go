// Package archive stores the raw text of inbound inquiries in S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"leadfollowup_backend/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Inquiry is the archived copy of one inbound message.
type Inquiry struct {
	LeadID     uuid.UUID `json:"leadId"`
	ClientSlug string    `json:"clientSlug"`
	Channel    string    `json:"channel"`
	ExternalID string    `json:"externalId,omitempty"`
	From       string    `json:"from"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Archiver stores inquiries and returns the object key.
type Archiver interface {
	ArchiveInquiry(ctx context.Context, inquiry Inquiry) (string, error)
}

// NoopArchiver discards inquiries.
type NoopArchiver struct{}

func (NoopArchiver) ArchiveInquiry(context.Context, Inquiry) (string, error) { return "", nil }

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOArchiver writes one JSON object per inquiry.
type MinIOArchiver struct {
	client objectPutter
	bucket string
}

// New returns a MinIO archiver when storage is configured and a NoopArchiver otherwise.
func New(ctx context.Context, cfg config.StorageConfig) (Archiver, error) {
	if !cfg.IsArchiveEnabled() {
		return NoopArchiver{}, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if err := ensureBucketExists(ctx, client, cfg.GetArchiveBucket()); err != nil {
		return nil, err
	}
	return &MinIOArchiver{client: client, bucket: cfg.GetArchiveBucket()}, nil
}

func ensureBucketExists(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (a *MinIOArchiver) ArchiveInquiry(ctx context.Context, inquiry Inquiry) (string, error) {
	body, err := json.Marshal(inquiry)
	if err != nil {
		return "", fmt.Errorf("marshal inquiry: %w", err)
	}

	key := ObjectKey(inquiry)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload inquiry %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey lays inquiries out as {client}/{channel}/{yyyy}/{mm}/{dd}/{lead}.json.
func ObjectKey(inquiry Inquiry) string {
	at := inquiry.ReceivedAt.UTC()
	return path.Join(
		inquiry.ClientSlug,
		inquiry.Channel,
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		inquiry.LeadID.String()+".json",
	)
}
