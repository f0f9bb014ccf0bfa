package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

// signedTokenName is the securecookie codec name for download tokens.
const signedTokenName = "blob-access"

// ErrBadToken is returned by VerifyToken for invalid or expired tokens.
var ErrBadToken = errors.New("blob: invalid or expired token")

// LocalStore keeps blobs on the local filesystem under a base directory.
// Signed URLs are HMAC tokens minted with securecookie and redeemed by the
// download handler via VerifyToken.
type LocalStore struct {
	baseDir string
	baseURL string // e.g. "/api/files/signed"
	codec   *securecookie.SecureCookie
}

// signedPayload is what a download token carries.
type signedPayload struct {
	Key       string    `json:"k"`
	ExpiresAt time.Time `json:"e"`
}

// NewLocal creates a LocalStore rooted at baseDir. baseURL is the path the
// download handler is mounted on; SignedURL appends ?token=... to it.
// signKey must be a strong random key (≥32 bytes recommended).
func NewLocal(baseDir, baseURL string, signKey []byte) (*LocalStore, error) {
	if baseDir == "" {
		return nil, errors.New("blob: base directory is required")
	}
	if len(signKey) == 0 {
		return nil, errors.New("blob: signing key is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create base directory: %w", err)
	}

	codec := securecookie.New(signKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// Expiry is carried in the payload; disable the codec's own age check.
	codec.MaxAge(0)

	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		codec:   codec,
	}, nil
}

// path maps a blob key to a filesystem path, rejecting traversal.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", errors.New("blob: empty key")
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	// Write to a temp file then rename so readers never see partial content.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	payload := signedPayload{
		Key:       key,
		ExpiresAt: time.Now().Add(ttl),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	token, err := s.codec.Encode(signedTokenName, string(raw))
	if err != nil {
		return "", err
	}
	return s.baseURL + "?token=" + url.QueryEscape(token), nil
}

// VerifyToken validates a download token and returns the blob key it grants
// access to. Returns ErrBadToken for tampered or expired tokens.
func (s *LocalStore) VerifyToken(token string) (string, error) {
	var raw string
	if err := s.codec.Decode(signedTokenName, token, &raw); err != nil {
		return "", ErrBadToken
	}
	var payload signedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", ErrBadToken
	}
	if time.Now().After(payload.ExpiresAt) {
		return "", ErrBadToken
	}
	return payload.Key, nil
}
