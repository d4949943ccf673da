package blobstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyPrefix = "sha256"
	keySuffix = ".json.gz"
)

// Entry describes one archived delivery body.
type Entry struct {
	SHA256    string
	SizeBytes int64
	Key       string
}

// DeliveryArchive keeps raw webhook bodies for later replay.
type DeliveryArchive interface {
	Put(ctx context.Context, body []byte) (Entry, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LocalArchive stores gzip-compressed bodies in a content-addressed tree.
// Identical bodies share one file.
type LocalArchive struct {
	root string
}

// NewLocalArchive creates an archive rooted at root.
func NewLocalArchive(root string) (*LocalArchive, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("archive root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalArchive{root: abs}, nil
}

// Put stores body under its SHA-256 digest.
func (a *LocalArchive) Put(ctx context.Context, body []byte) (Entry, error) {
	var zero Entry
	if a == nil {
		return zero, fmt.Errorf("archive is not configured")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])
	entry := Entry{SHA256: digest, SizeBytes: int64(len(body)), Key: keyFromDigest(digest)}
	dst := filepath.Join(a.root, filepath.FromSlash(entry.Key))

	if _, err := os.Stat(dst); err == nil {
		return entry, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(a.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	zw := gzip.NewWriter(tmp)
	if _, err := io.Copy(zw, bytes.NewReader(body)); err != nil {
		cleanup()
		return zero, err
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		if _, statErr := os.Stat(dst); statErr == nil {
			return entry, nil
		}
		return zero, err
	}
	return entry, nil
}

// Open returns the decompressed body stored under key.
func (a *LocalArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if a == nil {
		return nil, fmt.Errorf("archive is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := a.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open archive entry %s: %w", key, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

func keyFromDigest(digest string) string {
	return fmt.Sprintf("%s/%s/%s%s", keyPrefix, digest[0:2], digest, keySuffix)
}

func (a *LocalArchive) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("archive key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("archive key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive key")
	}
	return filepath.Join(a.root, clean), nil
}
