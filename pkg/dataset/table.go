package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// table is the untyped grid every source produces before cleaning.
type table struct {
	Header []string
	Rows   [][]string
}

func tableFromGrid(grid [][]string) table {
	if len(grid) == 0 {
		return table{}
	}
	return table{Header: grid[0], Rows: grid[1:]}
}

// readLocal picks the reader by file extension.
func readLocal(path string) (table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".csv":
		return readCSV(path)
	default:
		return table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func readCSV(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var grid [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		grid = append(grid, row)
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return tableFromGrid(grid), nil
}

// readXLSX reads the first worksheet of the workbook.
func readXLSX(path string) (table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return table{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		return table{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, nil
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return table{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return tableFromGrid(grid), nil
}
