package preview

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var errEmptyWorkbook = errors.New("workbook has no sheets")

// ParseCSV splits text into rows on newlines and cells on commas, trimming
// each cell. Blank lines are dropped. Quoting is not interpreted.
func ParseCSV(text string) [][]string {
	rows := make([][]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ",")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	return rows
}

// DecodeWorkbook returns the first sheet of an xlsx or legacy xls workbook as
// row-major cells, header row first.
func DecodeWorkbook(data []byte, legacy bool) ([][]string, error) {
	if legacy {
		return decodeXLS(data)
	}
	return decodeXLSX(data)
}

func decodeXLSX(data []byte) ([][]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmptyWorkbook
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

func decodeXLS(data []byte) (rows [][]string, err error) {
	// extrame/xls panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("failed to decode legacy workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, errEmptyWorkbook
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errEmptyWorkbook
	}

	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
