// Package plan defines the closed set of analysis descriptors a planner may
// produce. Descriptors name one of a fixed set of operations with column
// bindings and an optional aggregation; nothing in a descriptor is ever
// executed as code.
package plan

import (
	"fmt"
	"strings"

	scerrors "github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/table"
)

// Kind is the top-level shape of a planned response.
type Kind string

const (
	KindAnswer     Kind = "answer"      // plain-text reply, no data operation
	KindStats      Kind = "stats"       // summary statistics for columns
	KindChart      Kind = "chart"       // a single chart
	KindMultiChart Kind = "multi_chart" // several related charts
	KindDashboard  Kind = "dashboard"   // auto-selected overview panels
	KindTable      Kind = "table"       // filtered rows
)

// ChartType names one of the supported chart shapes.
type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartScatter   ChartType = "scatter"
	ChartHistogram ChartType = "histogram"
	ChartBox       ChartType = "box"
	ChartHeatmap   ChartType = "heatmap"
	ChartPie       ChartType = "pie"
)

// Filter is one row predicate. Op is one of eq, neq, gt, lt, gte, lte,
// contains.
type Filter struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  string `json:"value"`
}

// ChartSpec binds a chart type to columns. The meaning of X/Y depends on the
// chart type: bar and line aggregate Y per X, histogram and box use only X,
// scatter plots X against Y, heatmap correlates Columns.
type ChartSpec struct {
	Type        ChartType `json:"type"`
	X           string    `json:"x,omitempty"`
	Y           string    `json:"y,omitempty"`
	Columns     []string  `json:"columns,omitempty"`
	Aggregation string    `json:"aggregation,omitempty"`
	Title       string    `json:"title,omitempty"`
}

// Result is the planner's full output for one question.
type Result struct {
	Kind       Kind        `json:"kind"`
	Answer     string      `json:"answer,omitempty"`
	Columns    []string    `json:"columns,omitempty"`
	Charts     []ChartSpec `json:"charts,omitempty"`
	Filters    []Filter    `json:"filters,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Source     string      `json:"-"` // "model" or "rules"
	Confidence float64     `json:"-"`
}

var validKinds = map[Kind]bool{
	KindAnswer:     true,
	KindStats:      true,
	KindChart:      true,
	KindMultiChart: true,
	KindDashboard:  true,
	KindTable:      true,
}

var validChartTypes = map[ChartType]bool{
	ChartBar:       true,
	ChartLine:      true,
	ChartScatter:   true,
	ChartHistogram: true,
	ChartBox:       true,
	ChartHeatmap:   true,
	ChartPie:       true,
}

var validFilterOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "lt": true,
	"gte": true, "lte": true, "contains": true,
}

// Validate checks a result against the schema of t, repairing column names
// where possible. It returns an error when the descriptor falls outside the
// closed set or binds columns that cannot be matched to the table.
func (r *Result) Validate(t *table.Table) error {
	if !validKinds[r.Kind] {
		return scerrors.Newf(scerrors.ErrTypePlan, "unknown result kind: %s", r.Kind)
	}

	for i := range r.Columns {
		fixed, ok := table.RepairColumnName(r.Columns[i], t.Columns)
		if !ok {
			return unknownColumn(r.Columns[i], t)
		}

		r.Columns[i] = fixed
	}

	for i := range r.Filters {
		f := &r.Filters[i]

		if !validFilterOps[strings.ToLower(f.Op)] {
			return scerrors.Newf(scerrors.ErrTypePlan, "unknown filter operator: %s", f.Op)
		}

		fixed, ok := table.RepairColumnName(f.Column, t.Columns)
		if !ok {
			return unknownColumn(f.Column, t)
		}

		f.Column = fixed
	}

	for i := range r.Charts {
		if err := r.Charts[i].validate(t); err != nil {
			return err
		}
	}

	switch r.Kind {
	case KindChart:
		if len(r.Charts) != 1 {
			return scerrors.New(scerrors.ErrTypePlan, "chart result requires exactly one chart")
		}
	case KindMultiChart:
		if len(r.Charts) == 0 {
			return scerrors.New(scerrors.ErrTypePlan, "multi_chart result requires at least one chart")
		}
	case KindStats:
		if len(r.Columns) == 0 {
			return scerrors.New(scerrors.ErrTypePlan, "stats result requires at least one column")
		}
	}

	return nil
}

func (c *ChartSpec) validate(t *table.Table) error {
	if !validChartTypes[c.Type] {
		return scerrors.Newf(scerrors.ErrTypePlan, "unknown chart type: %s", c.Type)
	}

	repair := func(name *string) error {
		if *name == "" {
			return nil
		}

		fixed, ok := table.RepairColumnName(*name, t.Columns)
		if !ok {
			return unknownColumn(*name, t)
		}

		*name = fixed

		return nil
	}

	if err := repair(&c.X); err != nil {
		return err
	}

	if err := repair(&c.Y); err != nil {
		return err
	}

	for i := range c.Columns {
		if err := repair(&c.Columns[i]); err != nil {
			return err
		}
	}

	switch c.Type {
	case ChartHistogram, ChartBox:
		if c.X == "" {
			return scerrors.Newf(scerrors.ErrTypePlan, "%s chart requires a column", c.Type)
		}
	case ChartScatter:
		if c.X == "" || c.Y == "" {
			return scerrors.New(scerrors.ErrTypePlan, "scatter chart requires two columns")
		}
	case ChartBar, ChartLine, ChartPie:
		if c.X == "" {
			return scerrors.Newf(scerrors.ErrTypePlan, "%s chart requires an x column", c.Type)
		}
	case ChartHeatmap:
		if len(c.Columns) < 2 {
			return scerrors.New(scerrors.ErrTypePlan, "heatmap requires at least two columns")
		}
	}

	return nil
}

func unknownColumn(name string, t *table.Table) error {
	err := scerrors.Newf(scerrors.ErrTypePlan, "unknown column: %s", name)

	return err.WithSuggestion(
		fmt.Sprintf("Available columns: %s", strings.Join(t.ColumnNames(), ", ")))
}
