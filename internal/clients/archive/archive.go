package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Archive keeps a copy of every committed import upload.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Location describes where key is stored, for logs and audit rows.
	Location(key string) string
}

type Config struct {
	Bucket          string
	Prefix          string
	Dir             string
	CredentialsJSON string
	CredentialsFile string
}

// New picks the bucket archive when a bucket is configured, the local
// directory archive when a directory is, and a no-op otherwise.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Archive, error) {
	switch {
	case strings.TrimSpace(cfg.Bucket) != "":
		return NewGCSArchive(ctx, cfg, log)
	case strings.TrimSpace(cfg.Dir) != "":
		return NewLocalArchive(cfg.Dir, log)
	default:
		return Nop(), nil
	}
}

// Key names an upload by date, mode and a random id.
func Key(mode, fileName string, at time.Time) string {
	base := sanitizeName(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if base == "" || base == "." || base == "/" {
		base = "upload.xlsx"
	}
	return fmt.Sprintf("imports/%s/%s/%s-%s", at.UTC().Format("2006/01/02"), mode, uuid.NewString(), base)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
}

type nopArchive struct{}

func Nop() Archive { return nopArchive{} }

func (nopArchive) Put(context.Context, string, []byte, string) error { return nil }
func (nopArchive) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("import archive disabled")
}
func (nopArchive) Delete(context.Context, string) error { return nil }
func (nopArchive) Location(string) string { return "" }
