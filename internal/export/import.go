package export

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadsync/internal/model"
)

// Read decodes leads from r. The first row is a header naming lead fields;
// unknown columns such as id and timestamps are ignored, and blank rows are
// skipped.
func Read(r io.Reader, f Format) ([]model.Lead, error) {
	var rows [][]string
	var err error
	switch f {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		return nil, eris.Errorf("export: unsupported format %q", f)
	}
	if err != nil {
		return nil, err
	}
	return toLeads(rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "export: read csv")
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "export: read xlsx")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "export: open xlsx")
	}

	sheet, ok := f.Sheet[SheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.New("export: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func toLeads(rows [][]string) ([]model.Lead, error) {
	if len(rows) == 0 {
		return nil, eris.New("export: missing header row")
	}

	columns := make(map[int]model.Field)
	for i, name := range rows[0] {
		if f, err := model.ParseField(name); err == nil {
			columns[i] = f
		}
	}
	if len(columns) == 0 {
		return nil, eris.New("export: header names no lead fields")
	}

	leads := make([]model.Lead, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		var l model.Lead
		blank := true
		for i, v := range cells {
			f, ok := columns[i]
			if !ok {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				blank = false
			}
			l.Set(f, v)
		}
		if !blank {
			leads = append(leads, l)
		}
	}
	return leads, nil
}
