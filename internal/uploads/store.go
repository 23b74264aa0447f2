// Package uploads stores nurse onboarding documents in object storage and
// hands back descriptors the profile steps can embed in their payloads.
package uploads

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"carebridge/internal/onboarding"
	"carebridge/internal/platform/config"
	id "carebridge/pkg/domain"
)

// Store persists document bytes and returns descriptors for them.
type Store interface {
	Put(ctx context.Context, userID id.UserID, fileName, contentType string, content []byte) (onboarding.DocumentDescriptor, error)
	Get(ctx context.Context, userID id.UserID, fileName string) ([]byte, error)
}

// MinioStore keeps documents in a MinIO (or any S3-compatible) bucket, one
// prefix per user.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to object storage and ensures the bucket exists.
// Returns (nil, nil) when no endpoint is configured so callers can fall back
// to the in-memory store.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio bucket create: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, userID id.UserID, fileName, contentType string, content []byte) (onboarding.DocumentDescriptor, error) {
	objectKey := path.Join(userID.String(), fileName)
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return onboarding.DocumentDescriptor{}, fmt.Errorf("minio put %s: %w", objectKey, err)
	}
	return onboarding.DocumentDescriptor{
		FileName:    fileName,
		URL:         fmt.Sprintf("s3://%s/%s", s.bucket, objectKey),
		ContentType: contentType,
		Size:        int64(len(content)),
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, userID id.UserID, fileName string) ([]byte, error) {
	objectKey := path.Join(userID.String(), fileName)
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", objectKey, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("minio read %s: %w", objectKey, err)
	}
	return buf.Bytes(), nil
}

// InMemoryStore holds documents in memory for tests and bucket-less
// deployments.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{documents: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, userID id.UserID, fileName, contentType string, content []byte) (onboarding.DocumentDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := path.Join(userID.String(), fileName)
	s.documents[key] = append([]byte(nil), content...)
	return onboarding.DocumentDescriptor{
		FileName:    fileName,
		URL:         "mem://" + key,
		ContentType: contentType,
		Size:        int64(len(content)),
	}, nil
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID, fileName string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := path.Join(userID.String(), fileName)
	content, ok := s.documents[key]
	if !ok {
		return nil, fmt.Errorf("document %s not found", key)
	}
	return append([]byte(nil), content...), nil
}
