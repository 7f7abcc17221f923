package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/cibics-tracking-backend/internal/app"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

type options struct {
	file       string
	mode       string
	preview    bool
	limit      int
	actorEmail string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 2 for bad usage, 1 for failures.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	application, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "init app: %v\n", err)
		return 1
	}
	defer application.Close()

	f, err := os.Open(opts.file)
	if err != nil {
		fmt.Fprintf(stderr, "open %s: %v\n", opts.file, err)
		return 1
	}
	defer f.Close()

	var out any
	if opts.preview {
		out, err = application.Services.Import.Preview(ctx, f, opts.limit)
	} else {
		commit := services.CommitOptions{FileName: filepath.Base(opts.file)}
		if opts.actorEmail != "" {
			u, lookupErr := application.Repos.User.GetByEmail(dbctx.Context{Ctx: ctx}, strings.ToLower(strings.TrimSpace(opts.actorEmail)))
			if lookupErr != nil || u == nil {
				fmt.Fprintf(stderr, "unknown -actor %q\n", opts.actorEmail)
				return 1
			}
			id := u.ID
			commit.ActorID = &id
		}
		if opts.mode == "overwrite" {
			out, err = application.Services.Import.CommitOverwrite(ctx, f, commit)
		} else {
			out, err = application.Services.Import.CommitInsertOnly(ctx, f, commit)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "import failed: %v\n", err)
		return 1
	}

	if err := writeJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "write result: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("import_records", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "", "path to the .xlsx workbook")
	fs.StringVar(&opts.mode, "mode", "insert", "commit mode: insert | overwrite")
	fs.BoolVar(&opts.preview, "preview", false, "report what would happen without writing")
	fs.IntVar(&opts.limit, "limit", 0, "preview row limit")
	fs.StringVar(&opts.actorEmail, "actor", "", "email of the user recorded as importer")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case strings.TrimSpace(opts.file) == "":
		fs.Usage()
		return opts, fmt.Errorf("-file is required")
	case !strings.EqualFold(filepath.Ext(opts.file), ".xlsx"):
		return opts, fmt.Errorf("only .xlsx files are supported")
	case opts.mode != "insert" && opts.mode != "overwrite":
		return opts, fmt.Errorf("unknown -mode %q", opts.mode)
	}
	return opts, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
