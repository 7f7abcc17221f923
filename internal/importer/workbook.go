package importer

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Sheet is the raw body of the import worksheet.
type Sheet struct {
	Name      string
	HeaderRow int // 1-based row number in the worksheet
	Header    []string
	Rows      [][]string // Rows[i] is body row i+1
}

// ReadWorkbook opens the active worksheet and locates its header row.
func ReadWorkbook(r io.Reader, layout *Layout) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FileFormatError{Reason: "not a readable .xlsx document", Err: err}
	}
	defer f.Close()

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &FileFormatError{Reason: "workbook has no sheets"}
		}
		name = sheets[0]
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, &FileFormatError{Reason: fmt.Sprintf("cannot read sheet %q", name), Err: err}
	}
	return locateHeader(name, rows, layout)
}

func locateHeader(name string, rows [][]string, layout *Layout) (*Sheet, error) {
	required := layout.RequiredFields()
	var bestMissing []string
	limit := min(layout.HeaderSearchRows, len(rows))
	for i := 0; i < limit; i++ {
		missing := missingRequired(rows[i], required, layout)
		if len(missing) == 0 {
			return &Sheet{
				Name:      name,
				HeaderRow: i + 1,
				Header:    rows[i],
				Rows:      rows[i+1:],
			}, nil
		}
		if bestMissing == nil || len(missing) < len(bestMissing) {
			bestMissing = missing
		}
	}
	if bestMissing == nil {
		bestMissing = headersFor(required, layout)
		return nil, &FileFormatError{Reason: "sheet is empty", Missing: bestMissing}
	}
	return nil, &FileFormatError{Reason: "required headers not found", Missing: bestMissing}
}

func missingRequired(header []string, required []string, layout *Layout) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		if key, ok := layout.synonyms[HeaderKey(h)]; ok {
			present[key] = struct{}{}
		}
	}
	var missing []string
	for _, key := range required {
		if _, ok := present[key]; !ok {
			missing = append(missing, key)
		}
	}
	return headersFor(missing, layout)
}

func headersFor(keys []string, layout *Layout) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if f, ok := layout.Field(k); ok {
			out = append(out, f.Headers[0])
		}
	}
	sort.Strings(out)
	return out
}

// BuildTemplate renders an empty workbook with the title and header rows.
func BuildTemplate(layout *Layout) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := layout.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	header := make([]interface{}, 0, len(layout.Fields)+len(layout.StageFlags))
	for _, field := range layout.Fields {
		header = append(header, field.Headers[0])
	}
	for _, sf := range layout.StageFlags {
		header = append(header, sf.Header)
	}

	if err := f.SetCellValue(sheet, "A1", layout.Title); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"2", bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 22); err != nil {
		return nil, err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
