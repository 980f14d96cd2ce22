package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned when the workbook has no sheet or no header row.
var ErrEmptyWorkbook = errors.New("spreadsheet has no rows")

// ReadFile picks the reader by file extension. Anything not named .csv is treated as a workbook.
func ReadFile(name string, r io.Reader) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return ReadCSV(r)
	}
	return ReadRows(r)
}

// ReadCSV returns every record of a comma separated file, header row first.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return rows, nil
}

// ReadRows returns the cells of the first worksheet, header row first.
func ReadRows(r io.Reader) ([][]string, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return rows, nil
}

// Columns maps normalised header names to column indexes. Names are lower-cased and
// internal whitespace, underscores and dashes collapse to single spaces.
func Columns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := NormalizeHeader(name)
		if key == "" {
			continue
		}
		if _, exists := columns[key]; !exists {
			columns[key] = i
		}
	}
	return columns
}

// NormalizeHeader canonicalises a header cell for lookup.
func NormalizeHeader(name string) string {
	replacer := strings.NewReplacer("_", " ", "-", " ")
	return strings.Join(strings.Fields(strings.ToLower(replacer.Replace(name))), " ")
}

// Cell returns the trimmed cell at idx, or "" when the row is short.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
