package importer

import (
	"context"
	"testing"
)

func TestDetectScenario(t *testing.T) {
	layout := MustDefaultLayout()
	sheet := &Sheet{Header: testHeader}
	for i, short := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		sheet.Rows = append(sheet.Rows, siteRow(string(rune('1'+i)), "", "C-0", short, "Goa"))
	}
	sheet.Rows = append(sheet.Rows,
		siteRow("9", "Ravi", "C-9", "Panaji Port", "Goa"),
		siteRow("9", "ravi", "c-9", "PANAJI PORT", " goa "),
		[]string{"", "Ravi", "", "", "", "", "", "", "", "someone@x.com", ""},
	)

	rows, err := NewNormalizer(layout).Normalize(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	ann := Detect(rows, FingerprintSet{})
	c := Tally(rows, ann)
	if c.Total != 10 || c.Duplicates != 1 || c.Insertable != 9 || c.Invalid != 0 {
		t.Fatalf("counts %+v", c)
	}
	if !ann[8].Duplicate || ann[8].Reasons[0] != ReasonInFile || ann[7].Duplicate {
		t.Fatalf("only the second occurrence should be flagged: %+v %+v", ann[7], ann[8])
	}
}

func TestDetectExistingAndEmptyKeys(t *testing.T) {
	a := ImportRow{SourceRow: 1, Fingerprint: "aa"}
	b := ImportRow{SourceRow: 2, Fingerprint: "aa"}
	e1 := ImportRow{SourceRow: 3}
	e2 := ImportRow{SourceRow: 4}
	bad := ImportRow{SourceRow: 5, Fingerprint: "bb", Problems: []string{"too long"}}
	rows := []ImportRow{a, b, e1, e2, bad}

	ann := Detect(rows, FingerprintSet{"aa": {}, "bb": {}})
	if len(ann[0].Reasons) != 1 || ann[0].Reasons[0] != ReasonExisting {
		t.Fatalf("first row reasons %v", ann[0].Reasons)
	}
	if len(ann[1].Reasons) != 2 {
		t.Fatalf("reasons should be cumulative, got %v", ann[1].Reasons)
	}
	if ann[2].Duplicate || ann[3].Duplicate {
		t.Fatalf("empty keys must never collide")
	}
	if ann[4].Duplicate {
		t.Fatalf("invalid rows are not duplicates")
	}
	c := Tally(rows, ann)
	if c.Invalid != 1 || c.Duplicates != 2 || c.Insertable != 2 {
		t.Fatalf("counts %+v", c)
	}
	if fps := Fingerprints(rows); len(fps) != 1 || fps[0] != "aa" {
		t.Fatalf("Fingerprints %v", fps)
	}
}

func TestBuildTemplateRoundTrips(t *testing.T) {
	layout := MustDefaultLayout()
	raw, err := BuildTemplate(layout)
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}
	sheet, err := ReadWorkbook(bytesReader(raw), layout)
	if err != nil {
		t.Fatalf("template not readable: %v", err)
	}
	if sheet.Name != layout.SheetName || sheet.HeaderRow != 2 || len(sheet.Rows) != 0 {
		t.Fatalf("sheet %+v", sheet)
	}
}
