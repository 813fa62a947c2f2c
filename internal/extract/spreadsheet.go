package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// SpreadsheetErrorText replaces the content of a workbook that could not be read.
const SpreadsheetErrorText = "Error processing Excel file"

type spreadsheetDecoder struct {
	memLimit int64
}

func (s *spreadsheetDecoder) decode(_ context.Context, src Source) (string, error) {
	var (
		rows []string
		err  error
	)
	if isZipFile(src.Path) {
		rows, err = s.xlsxRows(src.Path)
	} else {
		rows, err = xlsRows(src.Path)
	}
	if err != nil {
		return SpreadsheetErrorText, degraded(err)
	}
	return strings.TrimSpace(strings.Join(rows, "\n")), nil
}

// xlsxRows loads the workbook with unzip limits so an oversized sheet fails
// instead of exhausting memory.
func (s *spreadsheetDecoder) xlsxRows(path string) ([]string, error) {
	f, err := excelize.OpenFile(path, excelize.Options{
		UnzipSizeLimit:    s.memLimit,
		UnzipXMLSizeLimit: s.memLimit,
	})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			if line := joinCells(row); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

func xlsRows(path string) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("xls reader panic: %v", r)
		}
	}()
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, err
	}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, max(0, row.LastCol()-row.FirstCol()))
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			if line := joinCells(cells); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// joinCells trims the non-empty cells of a row and joins them with spaces.
// A row without any such cell yields "".
func joinCells(cells []string) string {
	kept := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, " ")
}
