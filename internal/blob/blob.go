// Package blob stores and fetches immutable file bytes. Blobs are written
// once under a fresh path and never overwritten or deleted by the service.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Store is the file-blob collaborator consumed by the file staging engine.
type Store interface {
	// Put writes data under a new path and returns the stored blob's metadata.
	// An empty mimetype is detected from the content.
	Put(ctx context.Context, submissionID int64, name, mimeType string, data []byte) (*domain.FileBlob, error)

	// Fetch returns the bytes stored at path.
	// Returns domain.ErrNotFound when nothing is stored there.
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Compile-time interface verification.
var _ Store = (*FSStore)(nil)

// FSStore keeps blobs on an afero filesystem, one directory per submission.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore creates a store over fs.
func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// NewFromConfig builds the configured backend: the OS filesystem rooted at
// cfg.Root, or an in-memory filesystem.
func NewFromConfig(cfg config.BlobConfig) (*FSStore, error) {
	switch cfg.Backend {
	case config.BlobBackendMemory:
		return NewFSStore(afero.NewMemMapFs()), nil
	case config.BlobBackendOS, "":
		if cfg.Root == "" {
			return nil, errors.New("blob root is required for the os backend")
		}
		osFs := afero.NewOsFs()
		if err := osFs.MkdirAll(cfg.Root, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create blob root: %w", err)
		}
		return NewFSStore(afero.NewBasePathFs(osFs, cfg.Root)), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

// Put writes data to "<submissionID>/<uuid><ext>".
func (s *FSStore) Put(ctx context.Context, submissionID int64, name, mimeType string, data []byte) (*domain.FileBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if submissionID <= 0 {
		return nil, domain.NewValidationError("submission_id", "submission ID is required")
	}

	detected := mimetype.Detect(data)
	if mimeType == "" {
		mimeType = detected.String()
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = detected.Extension()
	}

	dir := strconv.FormatInt(submissionID, 10)
	p := path.Join(dir, uuid.New().String()+ext)

	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write blob %s: %w", p, err)
	}

	return &domain.FileBlob{
		Path:     p,
		Mimetype: mimeType,
		Size:     int64(len(data)),
	}, nil
}

// Fetch reads the blob stored at p.
func (s *FSStore) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean(p)
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return nil, domain.NewValidationError("path", "blob path must be relative")
	}

	data, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewNotFoundError("file", p)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", p, err)
	}
	return data, nil
}
