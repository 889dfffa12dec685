// Package storage keeps rendered CVs and uploaded resumes on the local disk or in an
// S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

var ErrInvalidKey = errors.New("invalid storage key")

type Storage interface {
	// Save writes data under key and returns a URL the client can fetch it from.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Backend   string
	MediaRoot string
	MediaURL  string
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// New returns the S3 backend when Backend is "s3", otherwise the local backend.
func New(ctx context.Context, cfg Config) (Storage, error) {
	if strings.EqualFold(cfg.Backend, "s3") {
		s, err := NewS3(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return NewLocal(cfg.MediaRoot, cfg.MediaURL)
}

// NewKey builds "<prefix>/<ksuid><ext>". Ksuids sort by creation time.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, ksuid.New().String()+ext)
}

// CVKey is the object key of a rendered CV export.
func CVKey(userID, cvID string, version int, ext string) string {
	return fmt.Sprintf("cvs/%s/%s/v%d.%s", userID, cvID, version, ext)
}

// KeyOwner returns the user id a key belongs to. Uploads and CV exports are kept under
// "uploads/<user_id>/" and "cvs/<user_id>/"; any other key has no owner.
func KeyOwner(key string) (string, bool) {
	key, err := cleanKey(key)
	if err != nil {
		return "", false
	}
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	if parts[0] != "uploads" && parts[0] != "cvs" {
		return "", false
	}
	return parts[1], true
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

const presignExpiry = time.Hour
