package importer

import (
	"context"
	"strings"
	"testing"
)

func TestReadWorkbookFindsHeaderBelowTitle(t *testing.T) {
	layout := MustDefaultLayout()
	r := workbook(t, [][]string{
		{"Site Tracker Import"},
		testHeader,
		siteRow("1", "Ravi", "C-01", "Chennai", "Tamil Nadu"),
	})
	sheet, err := ReadWorkbook(r, layout)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if sheet.HeaderRow != 2 || len(sheet.Rows) != 1 {
		t.Fatalf("header row=%d body=%d", sheet.HeaderRow, len(sheet.Rows))
	}
}

func TestReadWorkbookRejectsMissingHeaders(t *testing.T) {
	layout := MustDefaultLayout()
	_, err := ReadWorkbook(workbook(t, [][]string{{"Sl.no", "State"}, {"1", "Goa"}}), layout)
	if !IsFileFormatError(err) {
		t.Fatalf("expected FileFormatError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Pincode") {
		t.Fatalf("missing headers not reported: %v", err)
	}

	_, err = ReadWorkbook(strings.NewReader("not a workbook"), layout)
	if !IsFileFormatError(err) {
		t.Fatalf("expected FileFormatError for garbage, got %v", err)
	}
}

func TestNormalizeCleansAndDropsBlankRows(t *testing.T) {
	layout := MustDefaultLayout()
	sheet := &Sheet{
		Header: append(append([]string{}, testHeader...), "Unknown Column", "Custodian Email"),
		Rows: [][]string{
			{" 1 ", "  Ravi   Kumar ", "C-01", "INMAA", "Chennai", "Port Trust", "Tamil Nadu", "Dock   Road", "600001", "n/a", "yes", "ignored", "b@x.com"},
			{"", "", "", "", "", "", "", "", "", "", "", "ignored only"},
			{"2", "-", "C-02", "INMAA", "Ennore", "Port Trust", "Tamil Nadu", "Beach Road", "600002", "a@x.com", "no", "", "z@x.com"},
		},
	}
	rows, err := NewNormalizer(layout).Normalize(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	first, second := rows[0], rows[1]
	if first.SourceRow != 1 || second.SourceRow != 3 {
		t.Fatalf("source rows %d %d", first.SourceRow, second.SourceRow)
	}
	if *first.SlNo != "1" || *first.StatusRaw != "Ravi Kumar" || *first.SiteAddress != "Dock Road" {
		t.Fatalf("values not cleaned: %+v", first)
	}
	if first.ClientEmail == nil || *first.ClientEmail != "b@x.com" {
		t.Fatalf("fallback email column not used: %v", first.ClientEmail)
	}
	if *second.ClientEmail != "a@x.com" {
		t.Fatalf("primary email column should win, got %s", *second.ClientEmail)
	}
	if second.StatusRaw != nil {
		t.Fatalf("'-' should be null")
	}
	if !first.StageFlags["PROPOSAL_SENT"] || second.StageFlags["PROPOSAL_SENT"] {
		t.Fatalf("stage flags: %v %v", first.StageFlags, second.StageFlags)
	}
	if first.Fingerprint.IsEmpty() {
		t.Fatalf("fingerprint not computed")
	}
}

func TestNormalizeFlagsOverlongValues(t *testing.T) {
	layout := MustDefaultLayout()
	sheet := &Sheet{
		Header: testHeader,
		Rows:   [][]string{siteRow("1", "", "C-01", "Chennai", "Tamil Nadu")},
	}
	sheet.Rows[0][8] = strings.Repeat("9", 21)
	rows, err := NewNormalizer(layout).Normalize(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rows[0].Valid() {
		t.Fatalf("expected pincode length problem")
	}
}

func TestNormalizeKeepsOrderAcrossChunks(t *testing.T) {
	layout := MustDefaultLayout()
	sheet := &Sheet{Header: testHeader}
	for i := 0; i < 3*normalizeChunk+7; i++ {
		sheet.Rows = append(sheet.Rows, siteRow(strings.Repeat("x", i%5+1), "", "C", "S", "Goa"))
	}
	rows, err := NewNormalizer(layout).Normalize(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i, r := range rows {
		if r.SourceRow != i+1 {
			t.Fatalf("row %d has source_row %d", i, r.SourceRow)
		}
	}
}
