package importer

const (
	ReasonInFile   = "duplicate_in_file"
	ReasonExisting = "duplicate_existing"
)

// FingerprintSet holds fingerprints already persisted.
type FingerprintSet map[string]struct{}

func (s FingerprintSet) Has(fp Fingerprint) bool {
	_, ok := s[string(fp)]
	return ok
}

type Annotation struct {
	Duplicate bool     `json:"duplicate"`
	Reasons   []string `json:"duplicate_reasons"`
}

// Detect annotates rows against earlier rows of the same file and against
// existing. Invalid rows and empty fingerprints are never duplicates.
func Detect(rows []ImportRow, existing FingerprintSet) []Annotation {
	out := make([]Annotation, len(rows))
	seen := make(map[Fingerprint]struct{}, len(rows))
	for i := range rows {
		r := &rows[i]
		out[i].Reasons = []string{}
		if !r.Valid() || r.Fingerprint.IsEmpty() {
			continue
		}
		if _, ok := seen[r.Fingerprint]; ok {
			out[i].Reasons = append(out[i].Reasons, ReasonInFile)
		} else {
			seen[r.Fingerprint] = struct{}{}
		}
		if existing.Has(r.Fingerprint) {
			out[i].Reasons = append(out[i].Reasons, ReasonExisting)
		}
		out[i].Duplicate = len(out[i].Reasons) > 0
	}
	return out
}

// Counts are the preview aggregates for one file.
type Counts struct {
	Total      int `json:"total_rows"`
	Duplicates int `json:"duplicate_rows"`
	Invalid    int `json:"invalid_rows"`
	Insertable int `json:"insertable_rows"`
}

func Tally(rows []ImportRow, ann []Annotation) Counts {
	c := Counts{Total: len(rows)}
	for i := range rows {
		switch {
		case !rows[i].Valid():
			c.Invalid++
		case ann[i].Duplicate:
			c.Duplicates++
		default:
			c.Insertable++
		}
	}
	return c
}

// Fingerprints lists the distinct non-empty fingerprints of valid rows.
func Fingerprints(rows []ImportRow) []string {
	seen := make(map[Fingerprint]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for i := range rows {
		fp := rows[i].Fingerprint
		if fp.IsEmpty() || !rows[i].Valid() {
			continue
		}
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, string(fp))
	}
	return out
}
