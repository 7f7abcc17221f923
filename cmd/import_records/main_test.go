package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	cases := []struct {
		args    []string
		wantErr string
	}{
		{args: nil, wantErr: "-file is required"},
		{args: []string{"-file", "sites.csv"}, wantErr: "only .xlsx"},
		{args: []string{"-file", "sites.xlsx", "-mode", "append"}, wantErr: "unknown -mode"},
		{args: []string{"-file", "Sites.XLSX", "-mode", "overwrite", "-actor", "a@example.com"}},
	}
	for _, tc := range cases {
		var stderr bytes.Buffer
		opts, err := parseFlags(tc.args, &stderr)
		if tc.wantErr == "" {
			if err != nil {
				t.Fatalf("parseFlags(%v): %v", tc.args, err)
			}
			if opts.mode != "overwrite" || opts.actorEmail != "a@example.com" {
				t.Fatalf("parseFlags(%v) = %+v", tc.args, opts)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("parseFlags(%v) error %v, want %q", tc.args, err, tc.wantErr)
		}
	}
}

func TestRunRejectsBadUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-file", "sites.csv"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code %d, want 2", code)
	}
	if stdout.Len() != 0 || !strings.Contains(stderr.String(), ".xlsx") {
		t.Fatalf("stdout %q stderr %q", stdout.String(), stderr.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteJSONReportsWriteErrors(t *testing.T) {
	if err := writeJSON(failingWriter{}, map[string]int{"created": 1}); err == nil {
		t.Fatalf("expected the write error")
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]int{"created": 1}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"created": 1`) {
		t.Fatalf("output %q", buf.String())
	}
}
