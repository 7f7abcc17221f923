package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("TTL_SECONDS", "90")
	t.Setenv("TTL_GO", "12h")
	t.Setenv("TTL_BAD", "soon")

	if got := Duration("TTL_SECONDS", time.Minute); got != 90*time.Second {
		t.Fatalf("seconds: got=%s", got)
	}
	if got := Duration("TTL_GO", time.Minute); got != 12*time.Hour {
		t.Fatalf("go syntax: got=%s", got)
	}
	if got := Duration("TTL_BAD", time.Minute); got != time.Minute {
		t.Fatalf("fallback: got=%s", got)
	}
}

func TestCSVAndBool(t *testing.T) {
	t.Setenv("ORIGINS", " http://a , ,http://b")
	got := CSV("ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("csv: got=%v", got)
	}
	t.Setenv("FLAG", "off")
	if Bool("FLAG", true) {
		t.Fatalf("bool: want false")
	}
	if !Bool("FLAG_MISSING", true) {
		t.Fatalf("bool default: want true")
	}
}
