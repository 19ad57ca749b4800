package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	gcsPublicHost   = "https://storage.googleapis.com/"
	firebaseAPIHost = "firebasestorage.googleapis.com"
)

type GCSConfig struct {
	Bucket string
	// AccessID is the service account e-mail used to sign URLs. When empty the
	// client works it out from its credentials.
	AccessID string
	// PrivateKey signs locally. Without it signing goes through the IAM
	// credentials API.
	PrivateKey []byte
}

type GCSObjectStore struct {
	cfg    GCSConfig
	client *storage.Client
}

func NewGCSObjectStore(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCSObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}
	return &GCSObjectStore{cfg: cfg, client: client}, nil
}

func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}

func (s *GCSObjectStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return s.sign(key, http.MethodPut, contentType, ttl)
}

func (s *GCSObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.sign(key, http.MethodGet, "", ttl)
}

func (s *GCSObjectStore) sign(key, method, contentType string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		Expires:        time.Now().Add(ttl),
		GoogleAccessID: s.cfg.AccessID,
		PrivateKey:     s.cfg.PrivateKey,
	}
	if contentType != "" {
		opts.ContentType = contentType
	}
	return s.client.Bucket(s.cfg.Bucket).SignedURL(key, opts)
}

func (s *GCSObjectStore) PublicURL(key string) string {
	return gcsPublicHost + s.cfg.Bucket + "/" + escapeKey(key)
}

// KeyFromURL accepts plain storage.googleapis.com URLs and Firebase download
// URLs (/v0/b/{bucket}/o/{escaped key}).
func (s *GCSObjectStore) KeyFromURL(rawURL string) (string, bool) {
	if key, ok := keyUnderBase(rawURL, gcsPublicHost+s.cfg.Bucket+"/"); ok {
		return key, true
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !strings.EqualFold(u.Host, firebaseAPIHost) {
		return "", false
	}
	key, found := strings.CutPrefix(u.Path, "/v0/b/"+s.cfg.Bucket+"/o/")
	if !found || key == "" {
		return "", false
	}
	return key, true
}

// SourceURI is a gs:// URI, which Vision reads directly.
func (s *GCSObjectStore) SourceURI(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("gs://%s/%s", s.cfg.Bucket, key), nil
}

// Delete removes key. A missing object is not an error.
func (s *GCSObjectStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
