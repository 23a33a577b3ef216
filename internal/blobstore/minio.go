// Package blobstore stores two kinds of opaque blobs in MinIO: relay
// attachments (encrypted client-side, same opacity contract as the
// relay itself) and finished .haven archives awaiting download. Adapted
// from the parent backend's presigned-URL media service.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	attachmentPrefix = "attachments/"
	archivePrefix    = "archives/"
)

// Store wraps presigned-URL issuance and direct object access against a
// MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// UploadURL is a presigned PUT target for a client to push an encrypted
// attachment directly to the blobstore.
type UploadURL struct {
	ObjectID  uuid.UUID `json:"object_id"`
	URL       string    `json:"upload_url"`
	ExpiresIn int       `json:"expires_in"`
	MaxSize   int64     `json:"max_size"`
}

// DownloadURL is a presigned GET target.
type DownloadURL struct {
	ObjectID  uuid.UUID `json:"object_id"`
	URL       string    `json:"download_url"`
	ExpiresIn int       `json:"expires_in"`
}

// New connects to MinIO and ensures the target bucket exists.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// PresignAttachmentUpload issues a 15-minute presigned PUT URL for an
// encrypted attachment. The server never decrypts or inspects the
// bytes.
func (s *Store) PresignAttachmentUpload(maxSize int64) (*UploadURL, error) {
	id := uuid.New()
	expiry := 15 * time.Minute

	url, err := s.client.PresignedPutObject(context.Background(), s.bucket, attachmentPrefix+id.String(), expiry)
	if err != nil {
		return nil, err
	}
	return &UploadURL{ObjectID: id, URL: url.String(), ExpiresIn: int(expiry.Seconds()), MaxSize: maxSize}, nil
}

// PresignAttachmentDownload issues a one-hour presigned GET URL.
func (s *Store) PresignAttachmentDownload(id uuid.UUID) (*DownloadURL, error) {
	expiry := time.Hour
	url, err := s.client.PresignedGetObject(context.Background(), s.bucket, attachmentPrefix+id.String(), expiry, nil)
	if err != nil {
		return nil, err
	}
	return &DownloadURL{ObjectID: id, URL: url.String(), ExpiresIn: int(expiry.Seconds())}, nil
}

// DeleteAttachment removes a stored attachment.
func (s *Store) DeleteAttachment(id uuid.UUID) error {
	return s.client.RemoveObject(context.Background(), s.bucket, attachmentPrefix+id.String(), minio.RemoveObjectOptions{})
}

// PutArchive uploads a finished .haven archive directly (archives are
// produced server-side by internal/archive, so there is no need for a
// presigned client PUT).
func (s *Store) PutArchive(jobID uuid.UUID, data []byte) (string, error) {
	objectName := archivePrefix + jobID.String() + ".haven"
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(context.Background(), s.bucket, objectName, reader, int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return "", fmt.Errorf("put archive %s: %w", jobID, err)
	}
	return objectName, nil
}

// PresignArchiveDownload issues a 24-hour presigned GET URL for a
// finished archive.
func (s *Store) PresignArchiveDownload(objectName string) (string, error) {
	expiry := 24 * time.Hour
	url, err := s.client.PresignedGetObject(context.Background(), s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}
