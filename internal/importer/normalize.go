package importer

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const normalizeChunk = 256

type column struct {
	index int
	field string
	rank  int // synonym position; lower wins when several columns share a field
}

// columnPlan is the header mapping for one sheet.
type columnPlan struct {
	fields []column
	flags  map[int]string // column index -> stage code
}

// Normalizer turns raw sheet rows into ImportRows.
type Normalizer struct {
	layout  *Layout
	workers int
}

func NewNormalizer(layout *Layout) *Normalizer {
	return &Normalizer{layout: layout, workers: runtime.GOMAXPROCS(0)}
}

// Normalize maps every body row of sheet. Blank rows are dropped; the
// returned rows keep sheet order and carry their body ordinal.
func (n *Normalizer) Normalize(ctx context.Context, sheet *Sheet) ([]ImportRow, error) {
	plan := n.plan(sheet.Header)
	out := make([]*ImportRow, len(sheet.Rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(n.workers, 1))
	for start := 0; start < len(sheet.Rows); start += normalizeChunk {
		lo, hi := start, min(start+normalizeChunk, len(sheet.Rows))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = n.row(plan, sheet.Rows[i], i+1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]ImportRow, 0, len(out))
	for _, r := range out {
		if r != nil {
			rows = append(rows, *r)
		}
	}
	return rows, nil
}

func (n *Normalizer) plan(header []string) columnPlan {
	p := columnPlan{flags: make(map[int]string)}
	for i, h := range header {
		hk := HeaderKey(h)
		if hk == "" {
			continue
		}
		if key, ok := n.layout.synonyms[hk]; ok {
			p.fields = append(p.fields, column{index: i, field: key, rank: n.synonymRank(key, hk)})
			continue
		}
		if code, ok := n.layout.flags[hk]; ok {
			p.flags[i] = code
		}
	}
	return p
}

func (n *Normalizer) synonymRank(field, hk string) int {
	fd, _ := n.layout.Field(field)
	for i, h := range fd.Headers {
		if HeaderKey(h) == hk {
			return i
		}
	}
	return len(fd.Headers)
}

// row returns nil for a row without any content.
func (n *Normalizer) row(plan columnPlan, cells []string, ordinal int) *ImportRow {
	r := &ImportRow{SourceRow: ordinal}
	ranks := make(map[string]int, len(plan.fields))
	content := false

	for _, col := range plan.fields {
		if col.index >= len(cells) {
			continue
		}
		fd, _ := n.layout.Field(col.field)
		v := n.clean(cells[col.index], fd.Multiline)
		if v == nil {
			continue
		}
		content = true
		if prev, ok := ranks[col.field]; ok && prev <= col.rank {
			continue
		}
		ranks[col.field] = col.rank
		r.set(col.field, v)
	}

	for idx, code := range plan.flags {
		if idx >= len(cells) {
			continue
		}
		raw := strings.TrimSpace(cells[idx])
		if raw == "" {
			continue
		}
		content = true
		if n.layout.isTruthy(raw) {
			if r.StageFlags == nil {
				r.StageFlags = make(map[string]bool)
			}
			r.StageFlags[code] = true
		}
	}

	if !content {
		return nil
	}
	r.Problems = n.validate(r)
	r.Fingerprint = ComputeFingerprint(r.KeyFields())
	return r
}

func (n *Normalizer) clean(raw string, multiline bool) *string {
	var v string
	if multiline {
		lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
		for i := range lines {
			lines[i] = strings.Join(strings.Fields(lines[i]), " ")
		}
		v = strings.TrimSpace(strings.Join(lines, "\n"))
	} else {
		v = strings.Join(strings.Fields(raw), " ")
	}
	if n.layout.isNull(v) {
		return nil
	}
	return &v
}

func (n *Normalizer) validate(r *ImportRow) []string {
	var problems []string
	for _, f := range n.layout.Fields {
		v := r.Get(f.Key)
		if v == nil {
			continue
		}
		if l := utf8.RuneCountInString(*v); l > f.MaxLength {
			problems = append(problems, fmt.Sprintf("%s exceeds %d characters (%d)", f.Key, f.MaxLength, l))
		}
	}
	return problems
}
