// Package exchange turns uploaded spreadsheets into lead rows and leads back
// into flat export tables.
package exchange

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, use CSV, XLSX or XLS")
	ErrEmptyFile         = errors.New("the uploaded file is empty or not a valid CSV/Excel file")
	ErrUnreadable        = errors.New("file could not be read")
)

// Table is a parsed sheet: lower-cased, trimmed header names and string cells.
// Every row has len(Header) cells; blank rows are dropped.
type Table struct {
	Header []string
	Rows   [][]string
}

// Format returns the lower-cased extension if it is importable.
func Format(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".xlsx", ".xls":
		return ext, nil
	}
	return "", ErrUnsupportedFormat
}

func Parse(filename string, data []byte) (*Table, error) {
	ext, err := Format(filename)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var records [][]string
	switch ext {
	case ".csv":
		records, err = readCSV(data)
	case ".xlsx":
		records, err = readXLSX(data)
	case ".xls":
		records, err = readXLS(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return newTable(records)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if isBlank(header) {
		return nil, ErrEmptyFile
	}

	t := &Table{Header: header}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV accepts UTF-8 (with or without BOM) and falls back to Latin-1.
func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, err
		}
		data = decoded
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// readXLSX reads the first sheet with raw cell values so phone numbers and
// budgets keep their literal text.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	var out [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			out = append(out, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		out = append(out, cells)
	}
	return out, nil
}

// ReadAll is a helper for multipart uploads with a size cap.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file is larger than %d bytes", limit)
	}
	return data, nil
}
