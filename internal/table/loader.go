package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	scerrors "github.com/sheetchat/sheetchat/internal/errors"
)

// Limits bound how much of a file the loader will accept.
type Limits struct {
	MaxRows    int
	MaxColumns int
}

// Loader reads spreadsheet files into Tables.
type Loader struct {
	limits Limits
}

// NewLoader creates a loader with the given limits. Zero limits disable the
// corresponding bound.
func NewLoader(limits Limits) *Loader {
	return &Loader{limits: limits}
}

// reader extracts a raw cell grid from one file format.
type reader interface {
	// read returns the sheet name (empty for csv) and all rows including
	// the header row.
	read(data []byte) (string, [][]string, error)
}

// Load reads the file contents and builds a Table. The format is chosen by
// the filename extension.
func (l *Loader) Load(filename string, data []byte) (*Table, error) {
	var r reader

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		r = xlsxReader{}
	case ".xls":
		r = xlsReader{}
	case ".csv":
		r = csvReader{}
	default:
		return nil, scerrors.NewLoadError(
			fmt.Sprintf("unsupported file format: %s", filepath.Ext(filename)), nil)
	}

	sheet, rows, err := r.read(data)
	if err != nil {
		return nil, scerrors.NewLoadError("failed to read file", err)
	}

	t, err := l.build(rows)
	if err != nil {
		return nil, err
	}

	t.Sheet = sheet
	t.Source = filepath.Base(filename)

	return t, nil
}

// build turns a raw grid into a Table: header normalization, type inference,
// and per-column profiles.
func (l *Loader) build(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, scerrors.NewLoadError("file contains no rows", nil)
	}

	header := rows[0]
	body := rows[1:]

	if len(header) == 0 {
		return nil, scerrors.NewLoadError("file contains no columns", nil)
	}

	if l.limits.MaxColumns > 0 && len(header) > l.limits.MaxColumns {
		return nil, scerrors.NewLoadError(
			fmt.Sprintf("too many columns: %d (limit %d)", len(header), l.limits.MaxColumns), nil)
	}

	if l.limits.MaxRows > 0 && len(body) > l.limits.MaxRows {
		return nil, scerrors.NewLoadError(
			fmt.Sprintf("too many rows: %d (limit %d)", len(body), l.limits.MaxRows), nil)
	}

	names := NormalizeHeaders(header)

	// Pad ragged rows so every row has a cell per column.
	grid := make([][]string, len(body))

	for i, row := range body {
		if len(row) < len(names) {
			padded := make([]string, len(names))
			copy(padded, row)
			row = padded
		} else if len(row) > len(names) {
			row = row[:len(names)]
		}

		grid[i] = row
	}

	columns := make([]Column, len(names))
	profiles := make([]ColumnProfile, len(names))

	for i, name := range names {
		values := make([]string, len(grid))
		for j, row := range grid {
			values[j] = row[i]
		}

		ct := InferColumnType(name, values)

		columns[i] = Column{
			Name:         name,
			Key:          NormalizeKey(name),
			OriginalName: strings.TrimSpace(header[i]),
			Type:         ct,
			Index:        i,
		}
		profiles[i] = profileColumn(ct, values)
	}

	return &Table{
		Columns:  columns,
		Profiles: profiles,
		RowCount: len(grid),
		Rows:     grid,
	}, nil
}

type xlsxReader struct{}

func (xlsxReader) read(data []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	// Only the first sheet is loaded.
	sheet := sheets[0]

	iter, err := f.Rows(sheet)
	if err != nil {
		return "", nil, err
	}
	defer iter.Close()

	var rows [][]string

	for iter.Next() {
		cols, err := iter.Columns()
		if err != nil {
			return "", nil, err
		}

		rows = append(rows, cols)
	}

	return sheet, rows, iter.Error()
}

type xlsReader struct{}

func (xlsReader) read(data []byte) (string, [][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", nil, err
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	var rows [][]string

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}

		cells := make([]string, 0, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}

		rows = append(rows, cells)
	}

	return sheet.Name, rows, nil
}

type csvReader struct{}

func (csvReader) read(data []byte) (string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var rows [][]string

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return "", nil, err
		}

		rows = append(rows, record)
	}

	return "", rows, nil
}
