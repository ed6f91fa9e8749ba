// Package data provides file-backed resource factories: raw blobs, legacy
// encoded text, and YAML/TOML documents. Paths are slash-separated and
// resolved under a root directory they may not escape.
package data

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/l1jgo/resman/internal/resman"
	"golang.org/x/crypto/blake2b"
)

var ErrOutsideRoot = errors.New("path escapes resource root")

// Blob is a file's raw bytes plus their BLAKE2b-256 digest.
type Blob struct {
	Path string
	Data []byte
	Sum  [blake2b.Size256]byte
}

func NewBlob(path string, data []byte) *Blob {
	return &Blob{
		Path: path,
		Data: data,
		Sum:  blake2b.Sum256(data),
	}
}

// Digest returns the hex encoded content digest.
func (b *Blob) Digest() string {
	return hex.EncodeToString(b.Sum[:])
}

// Size returns the content length in bytes.
func (b *Blob) Size() int {
	return len(b.Data)
}

// BlobFactory reads path under root.
func BlobFactory(root string) resman.Factory {
	return func(path string) (resman.Resource, error) {
		raw, err := ReadFile(root, path)
		if err != nil {
			return nil, err
		}
		return NewBlob(path, raw), nil
	}
}

// Resolve maps a slash-separated resource path onto root.
func Resolve(root, path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.Join(root, local), nil
}

// ReadFile reads a resource path under root.
func ReadFile(root, path string) ([]byte, error) {
	full, err := Resolve(root, path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
