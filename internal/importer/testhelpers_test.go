package importer

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", addr, &cells); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

var testHeader = []string{
	"Sl.no", "PO STATUS", "Custodian Code", "UNLO Code", "Short Name",
	"Custodian Organization", "State", "Site Address", "Pincode", "Email id", "Proposal sent",
}

func siteRow(sl, status, code, short, state string) []string {
	return []string{sl, status, code, "INMAA", short, "Port Trust", state, "Dock Road", "600001", "", ""}
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
