package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	// Sheet names the worksheet. Empty means the first sheet.
	Sheet string
}

// ReadXLSX reads one worksheet of a workbook as trimmed string rows.
// Rows whose cells are all blank are skipped.
func ReadXLSX(r io.Reader, opts XLSXOptions) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read workbook")
	}

	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	var sheet *xlsx.Sheet
	switch {
	case opts.Sheet != "":
		s, ok := wb.Sheet[opts.Sheet]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.Sheet)
		}
		sheet = s
	case len(wb.Sheets) > 0:
		sheet = wb.Sheets[0]
	default:
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for i, cell := range row.Cells {
			cells[i] = strings.TrimSpace(cell.String())
			blank = blank && cells[i] == ""
		}
		if !blank {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}
