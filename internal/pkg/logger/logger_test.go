package logger

import "testing"

func TestSanitizeKVs(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })

	out := sanitizeKVs([]interface{}{
		"password", "hunter2",
		"assignee_id", "0b7f",
		"row", 3,
	})
	if len(out) != 6 {
		t.Fatalf("len: want=6 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("password: want redacted got=%v", out[1])
	}
	if s, _ := out[3].(string); len(s) != len("hash:")+12 {
		t.Fatalf("assignee_id: want hashed got=%v", out[3])
	}
	if out[5] != 3 {
		t.Fatalf("row: want passthrough got=%v", out[5])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })

	out := sanitizeKVs([]interface{}{"file", "sites.xlsx", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("odd kv: got=%v", out)
	}
}
