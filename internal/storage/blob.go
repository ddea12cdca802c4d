package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore is what the import engine needs from durable file storage:
// an idempotent fetch and a best-effort delete. Save is used by the upload
// paths that feed the engine.
type BlobStore interface {
	Save(tenantID string, data []byte) (string, error)
	Fetch(tenantID, ref string) ([]byte, error)
	Delete(tenantID, ref string)
}

// FileStore keeps blobs on the local filesystem under one directory per
// tenant. References are opaque UUIDs.
type FileStore struct {
	dir string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(tenantID, ref string) string {
	return filepath.Join(s.dir, tenantID, ref)
}

// Save writes the payload and returns a fresh blob reference.
func (s *FileStore) Save(tenantID string, data []byte) (string, error) {
	ref := uuid.New().String()
	dir := filepath.Join(s.dir, tenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create tenant dir: %w", err)
	}
	if err := os.WriteFile(s.path(tenantID, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return ref, nil
}

// Fetch reads the blob back in full.
func (s *FileStore) Fetch(tenantID, ref string) ([]byte, error) {
	data, err := os.ReadFile(s.path(tenantID, ref))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob %s: %w", ref, err)
	}
	return data, nil
}

// Delete removes the blob. Failure to delete is logged, not fatal: the job
// already reached its terminal state and a leaked file is an operator chore,
// not a correctness problem.
func (s *FileStore) Delete(tenantID, ref string) {
	if err := os.Remove(s.path(tenantID, ref)); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Failed to delete blob %s: %v", ref, err)
	}
}
