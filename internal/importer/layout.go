package importer

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayoutYAML []byte

// FieldSpec describes one canonical column of the workbook.
type FieldSpec struct {
	Key       string   `yaml:"key"`
	Headers   []string `yaml:"headers"`
	Required  bool     `yaml:"required"`
	Multiline bool     `yaml:"multiline"`
	MaxLength int      `yaml:"max_length"`
}

type StageFlagSpec struct {
	Header string `yaml:"header"`
	Stage  string `yaml:"stage"`
}

// Layout is the fixed workbook shape plus its header synonym table.
type Layout struct {
	Title            string          `yaml:"title"`
	SheetName        string          `yaml:"sheet_name"`
	HeaderSearchRows int             `yaml:"header_search_rows"`
	DefaultMaxLength int             `yaml:"default_max_length"`
	Fields           []FieldSpec     `yaml:"fields"`
	StageFlags       []StageFlagSpec `yaml:"stage_flags"`
	TerminalStatuses []string        `yaml:"terminal_statuses"`
	NullTokens       []string        `yaml:"null_tokens"`
	FalseTokens      []string        `yaml:"false_tokens"`

	synonyms   map[string]string // header key -> field key
	flags      map[string]string // header key -> stage code
	nullTokens map[string]struct{}
	falseToks  map[string]struct{}
	fieldIndex map[string]FieldSpec
}

// DefaultLayout parses the embedded layout.
func DefaultLayout() (*Layout, error) {
	return ParseLayout(defaultLayoutYAML)
}

// MustDefaultLayout panics if the embedded layout is malformed.
func MustDefaultLayout() *Layout {
	l, err := DefaultLayout()
	if err != nil {
		panic(err)
	}
	return l
}

func ParseLayout(raw []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.index(); err != nil {
		return nil, err
	}
	return &l, nil
}

func (l *Layout) index() error {
	if l.HeaderSearchRows <= 0 {
		l.HeaderSearchRows = 1
	}
	if l.DefaultMaxLength <= 0 {
		l.DefaultMaxLength = 255
	}
	if l.SheetName == "" {
		l.SheetName = "Sheet1"
	}
	l.synonyms = make(map[string]string)
	l.flags = make(map[string]string)
	l.fieldIndex = make(map[string]FieldSpec, len(l.Fields))
	for i := range l.Fields {
		f := &l.Fields[i]
		if f.Key == "" || len(f.Headers) == 0 {
			return fmt.Errorf("layout field %d: key and headers required", i)
		}
		if _, dup := l.fieldIndex[f.Key]; dup {
			return fmt.Errorf("layout field %q declared twice", f.Key)
		}
		if f.MaxLength <= 0 {
			f.MaxLength = l.DefaultMaxLength
		}
		l.fieldIndex[f.Key] = *f
		for _, h := range f.Headers {
			hk := HeaderKey(h)
			if owner, taken := l.synonyms[hk]; taken && owner != f.Key {
				return fmt.Errorf("header %q maps to both %s and %s", h, owner, f.Key)
			}
			l.synonyms[hk] = f.Key
		}
	}
	for _, sf := range l.StageFlags {
		hk := HeaderKey(sf.Header)
		if _, taken := l.synonyms[hk]; taken {
			return fmt.Errorf("stage flag header %q collides with a field header", sf.Header)
		}
		l.flags[hk] = strings.ToUpper(strings.TrimSpace(sf.Stage))
	}
	l.nullTokens = tokenSet(l.NullTokens)
	l.falseToks = tokenSet(l.FalseTokens)
	return nil
}

// WithTerminalStatuses returns a copy of l using tokens as the terminal
// status vocabulary.
func (l *Layout) WithTerminalStatuses(tokens []string) *Layout {
	if len(tokens) == 0 {
		return l
	}
	cp := *l
	cp.TerminalStatuses = append([]string(nil), tokens...)
	return &cp
}

func (l *Layout) Field(key string) (FieldSpec, bool) {
	f, ok := l.fieldIndex[key]
	return f, ok
}

// RequiredFields lists the field keys whose header must be present.
func (l *Layout) RequiredFields() []string {
	out := make([]string, 0)
	for _, f := range l.Fields {
		if f.Required {
			out = append(out, f.Key)
		}
	}
	return out
}

func (l *Layout) isNull(v string) bool {
	_, ok := l.nullTokens[strings.ToLower(v)]
	return ok
}

func (l *Layout) isTruthy(v string) bool {
	_, falsy := l.falseToks[strings.ToLower(strings.TrimSpace(v))]
	return !falsy
}

// HeaderKey folds a header cell to its comparison form.
func HeaderKey(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return out
}
