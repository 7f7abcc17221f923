package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

func TestKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	k := Key("overwrite", `C:\uploads\Site List (v2).xlsx`, at)
	if !strings.HasPrefix(k, "imports/2026/03/09/overwrite/") {
		t.Fatalf("unexpected prefix: %s", k)
	}
	if !strings.HasSuffix(k, "-Site_List_v2.xlsx") {
		t.Fatalf("unexpected name: %s", k)
	}
	if k2 := Key("insert_only", "", at); !strings.HasSuffix(k2, "upload.xlsx") {
		t.Fatalf("empty name: %s", k2)
	}
}

func TestLocalArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, Config{Dir: t.TempDir()}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := Key("insert_only", "sites.xlsx", time.Now())
	if err := a.Put(ctx, key, []byte("payload"), XLSXContentType); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := a.Get(ctx, key)
	if err != nil || string(got) != "payload" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if !strings.HasPrefix(a.Location(key), "file://") {
		t.Fatalf("Location %q", a.Location(key))
	}
	if err := a.Put(ctx, "../escape", []byte("x"), ""); err == nil {
		t.Fatalf("expected escape to be rejected")
	}

	if err := a.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := a.Get(ctx, key); err == nil {
		t.Fatalf("Get after Delete should fail")
	}
	if err := a.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of a missing key: %v", err)
	}
}

func TestNewWithoutConfigIsNop(t *testing.T) {
	a, err := New(context.Background(), Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Put(context.Background(), "k", nil, ""); err != nil {
		t.Fatalf("nop Put: %v", err)
	}
	if a.Location("k") != "" {
		t.Fatalf("nop location should be empty")
	}
}
