package importing

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// File-level failures. They abort the whole operation.
var (
	ErrEmptyFile           = errors.New("file contains no data")
	ErrCorruptFile         = errors.New("file could not be opened as a spreadsheet")
	ErrSheetNotFound       = errors.New("sheet not found")
	ErrParse               = errors.New("file could not be parsed")
	ErrUnsupportedFileType = errors.New("unsupported file type (csv, xlsx, xlsm, xls)")
)

type FileType string

const (
	FileTypeCSV         FileType = "csv"
	FileTypeSpreadsheet FileType = "spreadsheet"
)

const (
	sampleRowLimit    = 5
	headerPreviewSize = 20
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFileType decides the reader from the file extension.
func DetectFileType(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FileTypeCSV, nil
	case ".xlsx", ".xlsm", ".xls":
		return FileTypeSpreadsheet, nil
	}
	return "", ErrUnsupportedFileType
}

// Table is a file loaded fully into memory. Every row has len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"-"`
}

func (t *Table) Len() int { return len(t.Rows) }

// Samples returns up to n rows keyed by column name, for preview UIs.
func (t *Table) Samples(n int) []map[string]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]map[string]string, 0, n)
	for _, row := range t.Rows[:n] {
		out = append(out, t.rowMap(row))
	}
	return out
}

func (t *Table) rowMap(row []string) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for i, col := range t.Columns {
		m[col] = row[i]
	}
	return m
}

// SheetInfo describes one worksheet without its data rows.
type SheetInfo struct {
	Name     string   `json:"name"`
	RowCount int      `json:"row_count"`
	ColCount int      `json:"col_count"`
	HasData  bool     `json:"has_data"`
	Headers  []string `json:"headers"`
}

// ReadFile loads path with the reader for ft. sheet is ignored for CSV.
func ReadFile(path string, ft FileType, sheet string) (*Table, error) {
	switch ft {
	case FileTypeCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
		}
		defer f.Close()
		return ReadCSV(f)
	case FileTypeSpreadsheet:
		return ReadSpreadsheet(path, sheet)
	}
	return nil, ErrUnsupportedFileType
}

// ReadCSV reads UTF-8 CSV (optionally BOM-prefixed). The first non-blank record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: file is not valid UTF-8", ErrParse)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return buildTable(records, true)
}

// ListSheets enumerates the worksheets of a workbook. Rows are streamed to count them;
// only the header row is kept.
func ListSheets(path string) ([]SheetInfo, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return listSheets(f)
}

// ReadSpreadsheet loads one worksheet with raw cell values. An empty sheet name selects
// the first sheet that has data.
func ReadSpreadsheet(path, sheet string) (*Table, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		infos, err := listSheets(f)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if info.HasData {
				sheet = info.Name
				break
			}
		}
		if sheet == "" {
			return nil, ErrEmptyFile
		}
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrParse, sheet, err)
	}
	return buildTable(rows, false)
}

func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	return f, nil
}

func listSheets(f *excelize.File) ([]SheetInfo, error) {
	names := f.GetSheetList()
	infos := make([]SheetInfo, 0, len(names))
	for _, name := range names {
		rows, err := f.Rows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrCorruptFile, name, err)
		}
		info := SheetInfo{Name: name, Headers: []string{}}
		for rows.Next() {
			cols, err := rows.Columns(excelize.Options{RawCellValue: true})
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: sheet %q: %v", ErrParse, name, err)
			}
			if info.RowCount == 0 {
				info.Headers = previewHeaders(cols)
			}
			info.RowCount++
			if len(cols) > info.ColCount {
				info.ColCount = len(cols)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		info.HasData = info.RowCount > 1
		infos = append(infos, info)
	}
	return infos, nil
}

func previewHeaders(cols []string) []string {
	n := len(cols)
	if n > headerPreviewSize {
		n = headerPreviewSize
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = headerName(cols[i], i)
	}
	return out
}

func headerName(raw string, idx int) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "列" + strconv.Itoa(idx+1)
	}
	return name
}

// buildTable turns raw records into a Table. Blank records are dropped. In strict mode
// (CSV) a data row with non-blank cells beyond the header is a parse error; otherwise the
// header is widened to fit.
func buildTable(records [][]string, strict bool) (*Table, error) {
	var header []string
	body := make([][]string, 0, len(records))
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		body = append(body, rec)
	}
	if header == nil || len(body) == 0 {
		return nil, ErrEmptyFile
	}

	width := len(header)
	for i, rec := range body {
		w := lastNonBlank(rec) + 1
		if w <= width {
			continue
		}
		if strict {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrParse, i+1, w, len(header))
		}
		width = w
	}

	columns := make([]string, width)
	seen := make(map[string]int, width)
	for i := range columns {
		raw := ""
		if i < len(header) {
			raw = header[i]
		}
		name := headerName(raw, i)
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}

	rows := make([][]string, len(body))
	for i, rec := range body {
		row := make([]string, width)
		copy(row, rec)
		rows[i] = row
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

func isBlankRecord(rec []string) bool {
	return lastNonBlank(rec) < 0
}

func lastNonBlank(rec []string) int {
	for i := len(rec) - 1; i >= 0; i-- {
		if strings.TrimSpace(rec[i]) != "" {
			return i
		}
	}
	return -1
}
