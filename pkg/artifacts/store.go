// Package artifacts stores rendered reports and metric documents by content
// hash.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const hashPrefix = "sha256:"

// ErrNotFound is returned by Get when no blob has the requested hash.
var ErrNotFound = errors.New("artifact not found")

// Store is a content-addressed blob store.
type Store interface {
	// Put persists data and returns "sha256:<hex>". Storing the same bytes twice is a no-op.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Exists(ctx context.Context, hash string) (bool, error)
	Delete(ctx context.Context, hash string) error
}

// Hash returns the content address of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hashPrefix + hex.EncodeToString(sum[:])
}

// rawHash validates a "sha256:<hex>" address and returns the hex part.
func rawHash(hash string) (string, error) {
	raw, ok := strings.CutPrefix(hash, hashPrefix)
	if !ok {
		return "", fmt.Errorf("invalid hash format: %s", hash)
	}
	if b, err := hex.DecodeString(raw); err != nil || len(b) != sha256.Size {
		return "", fmt.Errorf("invalid hash hex: %s", hash)
	}
	return raw, nil
}

func blobName(prefix, raw string) string {
	return prefix + raw + ".blob"
}

// FileStore keeps blobs as files under a directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: reports are meant to be readable
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(raw string) string {
	return filepath.Join(s.baseDir, blobName("", raw))
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	hash := Hash(data)
	raw := hash[len(hashPrefix):]

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(raw)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	tmp := path + ".tmp"
	//nolint:gosec // G306: reports are meant to be readable
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return hash, nil
}

func (s *FileStore) Get(_ context.Context, hash string) ([]byte, error) {
	raw, err := rawHash(hash)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(raw)) //nolint:gosec // hash validated as hex
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, hash string) (bool, error) {
	raw, err := rawHash(hash)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.path(raw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat blob %s: %w", hash, err)
	}
}

func (s *FileStore) Delete(_ context.Context, hash string) error {
	raw, err := rawHash(hash)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(raw)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
