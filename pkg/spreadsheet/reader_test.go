package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadRows(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Student ID", "Full name"},
		{"S1", "Ana"},
		{"S2", "Budi"},
	})

	rows, err := ReadRows(buf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Student ID", "Full name"}, {"S1", "Ana"}, {"S2", "Budi"}}, rows)
}

func TestReadRowsRejectsGarbage(t *testing.T) {
	_, err := ReadRows(bytes.NewBufferString("not a workbook"))
	require.Error(t, err)
}

func TestColumns(t *testing.T) {
	cols := Columns([]string{" Student_ID ", "FULL   name", "", "grade", "Grade"})

	assert.Equal(t, map[string]int{"student id": 0, "full name": 1, "grade": 3}, cols)
}

func TestCell(t *testing.T) {
	row := []string{" S1 ", "Ana"}

	assert.Equal(t, "S1", Cell(row, 0))
	assert.Equal(t, "", Cell(row, 5))
	assert.Equal(t, "", Cell(row, -1))
}

func TestReadFilePicksReaderByExtension(t *testing.T) {
	rows, err := ReadFile("roster.CSV", strings.NewReader("Student ID,Full Name\nS1, Sari\nS2\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Student ID", "Full Name"}, {"S1", "Sari"}, {"S2"}}, rows)

	_, err = ReadFile("roster.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyWorkbook)

	rows, err = ReadFile("roster.xlsx", workbook(t, [][]interface{}{{"Student ID"}, {"S1"}}))
	require.NoError(t, err)
	assert.Equal(t, "S1", rows[1][0])
}
