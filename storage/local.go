package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects below Root and serves them under BaseURL.
type Local struct {
	Root    string
	BaseURL string
}

func NewLocal(root, baseURL string) (*Local, error) {
	if root == "" {
		root = "media"
	}
	if baseURL == "" {
		baseURL = "/media/"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &Local{Root: root, BaseURL: strings.TrimSuffix(baseURL, "/") + "/"}, nil
}

func (l *Local) path(key string) (string, string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(l.Root, filepath.FromSlash(key)), nil
}

func (l *Local) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		slog.Error("Failed to write media file", "error", err, "key", key)
		return "", err
	}
	slog.Info("Media file stored", "key", key, "bytes", len(data), "content_type", contentType)
	return l.BaseURL + key, nil
}

func (l *Local) URL(ctx context.Context, key string) (string, error) {
	key, _, err := l.path(key)
	if err != nil {
		return "", err
	}
	return l.BaseURL + key, nil
}

// Open returns the stored file for key. Directories are reported as fs.ErrNotExist so
// nothing below Root can be listed.
func (l *Local) Open(key string) (*os.File, fs.FileInfo, error) {
	_, p, err := l.path(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fs.ErrNotExist
	}
	return f, info, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	_, p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
