// Package storage provides core.Sink implementations.
package storage

import (
	"context"
	"errors"
	"os"

	apperrors "github.com/TurbulentGoat/fts-converter/errors"
)

// Local writes output files to the local filesystem.  Writes replace any
// existing file at the target path (last writer wins, no versioning).
type Local struct {
	permissions os.FileMode
}

// NewLocal creates a Local sink.  A zero perm defaults to 0644.
func NewLocal(perm os.FileMode) *Local {
	if perm == 0 {
		perm = 0o644
	}
	return &Local{permissions: perm}
}

func (l *Local) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	if err := os.WriteFile(path, data, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
}

func (l *Local) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	return nil
}
