package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type localArchive struct {
	log  *logger.Logger
	root string
}

func NewLocalArchive(dir string, log *logger.Logger) (Archive, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve archive dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &localArchive{log: log.With("service", "LocalArchive"), root: root}, nil
}

func (a *localArchive) path(key string) (string, error) {
	p := filepath.Join(a.root, filepath.FromSlash(key))
	if p != a.root && !strings.HasPrefix(p, a.root+string(filepath.Separator)) {
		return "", fmt.Errorf("archive key %q escapes root", key)
	}
	return p, nil
}

func (a *localArchive) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := a.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (a *localArchive) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (a *localArchive) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := a.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (a *localArchive) Location(key string) string {
	p, err := a.path(key)
	if err != nil {
		return ""
	}
	return "file://" + filepath.ToSlash(p)
}
