package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kurin/blazer/b2"
)

// B2Store keeps blobs in a Backblaze B2 bucket. Signed URLs use B2's
// per-object download authorization.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

// NewB2 connects to Backblaze B2 and binds to the named bucket.
func NewB2(ctx context.Context, keyID, applicationKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("blob: create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("blob: bind bucket %s: %w", bucketName, err)
	}
	return &B2Store{client: client, bucket: bucket}, nil
}

func (s *B2Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("blob: upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob: finalize %s: %w", key, err)
	}
	return nil
}

func (s *B2Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.bucket.Object(key)
	r := obj.NewReader(ctx)
	return r, nil
}

func (s *B2Store) Delete(ctx context.Context, key string) error {
	obj := s.bucket.Object(key)
	if err := obj.Delete(ctx); err != nil {
		if isB2NotFound(err) {
			return nil
		}
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

func (s *B2Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	obj := s.bucket.Object(key)
	u, err := obj.AuthURL(ctx, ttl, "GET")
	if err != nil {
		return "", fmt.Errorf("blob: sign %s: %w", key, err)
	}
	return u.String(), nil
}

// isB2NotFound checks whether a B2 error is a missing-file condition.
func isB2NotFound(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not_found") || strings.Contains(s, "no such file") || strings.Contains(s, "404")
}
