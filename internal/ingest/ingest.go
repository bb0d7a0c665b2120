// Package ingest turns uploaded spreadsheets into dataset rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// MaxImportRows is the default row ceiling for one upload.
const MaxImportRows = 100000

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptySheet        = errors.New("worksheet is empty")
	ErrTooManyRows       = errors.New("too many rows")
)

// Sheet is a parsed upload. Headers keep the file's column order.
type Sheet struct {
	Headers []string
	Rows    []map[string]any
}

// Parse reads fileName's content with the default row ceiling.
func Parse(r io.Reader, fileName string) ([]map[string]any, error) {
	s, err := ParseSheet(r, fileName, MaxImportRows)
	if err != nil { return nil, err }
	return s.Rows, nil
}

// ParseSheet picks a reader by extension. The first row is the header row and
// every cell value is kept as a trimmed string. maxRows <= 0 disables the ceiling.
func ParseSheet(r io.Reader, fileName string, maxRows int) (Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil { return Sheet{}, err }

	var grid [][]string
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".xlsx", ".xlsm":
		grid, err = readXLSX(data)
	case ".xls":
		grid, err = readXLS(data, maxRows)
	case ".csv", ".txt":
		grid, err = readCSV(data)
	default:
		return Sheet{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil { return Sheet{}, err }
	return toSheet(grid, maxRows)
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil { return nil, err }
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" { return nil, fmt.Errorf("no worksheet found") }
	return file.GetRows(sheetName)
}

func readXLS(data []byte, maxRows int) (grid [][]string, err error) {
	// the BIFF parser panics on some corrupt files
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("read xls: %v", r)
		}
	}()
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil { return nil, err }
	if workbook.NumSheets() == 0 { return nil, fmt.Errorf("no worksheet found") }
	sheet := workbook.GetSheet(0)
	if sheet == nil { return nil, fmt.Errorf("no worksheet found") }

	for i := 0; i <= int(sheet.MaxRow); i++ {
		// header plus one row past the ceiling is enough to report it
		if maxRows > 0 && len(grid) > maxRows+1 { break }
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

// sniffDelimiter prefers ';' when the header line has more of them than ','.
// German Excel exports use ';' because ',' is the decimal separator.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 { line = data[:i] }
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) { return ';' }
	if bytes.Count(line, []byte("\t")) > bytes.Count(line, []byte(",")) { return '\t' }
	return ','
}

func toSheet(grid [][]string, maxRows int) (Sheet, error) {
	start := -1
	for i, row := range grid {
		if !blankRow(row) {
			start = i
			break
		}
	}
	if start < 0 { return Sheet{}, ErrEmptySheet }

	headers := Headers(grid[start])
	out := Sheet{Headers: headers, Rows: []map[string]any{}}
	for _, row := range grid[start+1:] {
		if blankRow(row) { continue }
		if maxRows > 0 && len(out.Rows) >= maxRows {
			return Sheet{}, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		rec := make(map[string]any, len(headers))
		for i, h := range headers {
			rec[h] = cellValue(row, i)
		}
		// cells beyond the header row get positional names
		for i := len(headers); i < len(row); i++ {
			if v := cellValue(row, i); v != "" {
				rec["column_"+strconv.Itoa(i+1)] = v
			}
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}

// Headers trims header cells, names blank ones column_N and suffixes
// repeats with _2, _3 so every column keeps a distinct key.
func Headers(row []string) []string {
	out := make([]string, len(row))
	used := map[string]bool{}
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" { h = "column_" + strconv.Itoa(i+1) }
		name := h
		for n := 2; used[name]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" { return false }
	}
	return true
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) { return "" }
	return strings.TrimSpace(row[idx])
}
