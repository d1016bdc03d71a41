// Package table loads tabular files (xlsx, xls, csv) into a normalized
// in-memory form: cleaned headers, inferred column types, and per-column
// profiles suitable for building prompt context without exposing cell values.
package table

import (
	"fmt"
	"strings"
	"time"
)

// ColumnType is the inferred semantic type of a column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeDatetime    ColumnType = "datetime"
	TypeBoolean     ColumnType = "boolean"
	TypeCategorical ColumnType = "categorical"
	TypeText        ColumnType = "text"
)

// Column describes a single column after normalization and inference.
type Column struct {
	Name         string     `json:"name"`          // display name after cleaning/dedup
	Key          string     `json:"key"`           // normalized identifier (lowercase, underscores)
	OriginalName string     `json:"original_name"` // header cell as read from the file
	Type         ColumnType `json:"type"`
	Index        int        `json:"index"`
}

// NumericProfile summarizes a numeric column.
type NumericProfile struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// DatetimeProfile summarizes a datetime column.
type DatetimeProfile struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// ColumnProfile holds aggregate statistics for one column. Only the block
// matching the column type is populated.
type ColumnProfile struct {
	NonNull     int              `json:"non_null"`
	Missing     int              `json:"missing"`
	Cardinality int              `json:"cardinality"`
	Numeric     *NumericProfile  `json:"numeric,omitempty"`
	Datetime    *DatetimeProfile `json:"datetime,omitempty"`
}

// Table is a loaded spreadsheet: schema, profiles, and the raw cell grid.
// The grid is handed to the dataset store for querying and is not consulted
// again after registration.
type Table struct {
	Columns  []Column        `json:"columns"`
	Profiles []ColumnProfile `json:"profiles"`
	RowCount int             `json:"row_count"`
	Sheet    string          `json:"sheet,omitempty"`
	Source   string          `json:"source,omitempty"`

	Rows [][]string `json:"-"`
}

// ColumnNames returns the display names of all columns in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

// ColumnsOfType returns the columns whose inferred type matches ct.
func (t *Table) ColumnsOfType(ct ColumnType) []Column {
	var out []Column

	for _, c := range t.Columns {
		if c.Type == ct {
			out = append(out, c)
		}
	}

	return out
}

// FindColumn locates a column by display name, case-insensitively.
func (t *Table) FindColumn(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}

	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}

	return Column{}, false
}

// SchemaContext renders the table's structure as plain text for inclusion in
// a model prompt. It deliberately contains no cell values: only names, types,
// missing counts, and aggregate ranges.
func (t *Table) SchemaContext() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rows: %d\nColumns (%d):\n", t.RowCount, len(t.Columns))

	for i, c := range t.Columns {
		p := t.Profiles[i]
		fmt.Fprintf(&b, "- %s (%s)", c.Name, c.Type)

		if p.Missing > 0 {
			fmt.Fprintf(&b, ", %d missing", p.Missing)
		}

		switch {
		case c.Type == TypeNumeric && p.Numeric != nil:
			fmt.Fprintf(&b, ", range %s to %s, mean %s",
				trimFloat(p.Numeric.Min), trimFloat(p.Numeric.Max), trimFloat(p.Numeric.Mean))
		case c.Type == TypeDatetime && p.Datetime != nil:
			fmt.Fprintf(&b, ", from %s to %s",
				p.Datetime.Min.Format("2006-01-02"), p.Datetime.Max.Format("2006-01-02"))
		case c.Type == TypeCategorical:
			fmt.Fprintf(&b, ", %d distinct values", p.Cardinality)
		}

		b.WriteString("\n")
	}

	return b.String()
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")

	if s == "" || s == "-" {
		return "0"
	}

	return s
}
