package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

// FallbackService provides rule-based planning when no model is available
type FallbackService struct{}

// NewFallbackService creates a new fallback service
func NewFallbackService() *FallbackService {
	return &FallbackService{}
}

// Configure is a no-op for the fallback service
func (f *FallbackService) Configure(_ Config) error {
	return nil
}

// Keyword sets checked in order from most to least specific.
var (
	dashboardKeywords = []string{
		"dashboard", "overview", "explore", "everything", "all charts",
		"summarize the data", "summary of the data",
	}

	multiChartKeywords = []string{
		"charts", "graphs", "plots", "visualizations", "several", "multiple",
	}

	statsKeywords = []string{
		"average", "mean", "median", "sum", "total", "minimum", "maximum",
		"min", "max", "std", "deviation", "describe", "statistics", "stats",
	}

	chartKeywords = []string{
		"chart", "plot", "graph", "draw", "visualize", "histogram",
		"distribution", "bar", "line", "scatter", "pie", "box", "outlier",
		"correlation", "heatmap", "trend",
	}

	filterKeywords = []string{
		"filter", "show rows", "only rows", "which rows", "where",
		"greater than", "less than", "at least", "at most", "more than",
		"fewer than",
	}
)

// Plan produces a descriptor from keyword rules. It never fails: questions
// that match nothing get a guidance answer.
func (f *FallbackService) Plan(_ context.Context, question string, t *table.Table) (*plan.Result, error) {
	q := strings.ToLower(question)
	mentioned := mentionedColumns(q, t)

	var result *plan.Result

	switch {
	case containsAny(q, dashboardKeywords):
		result = &plan.Result{Kind: plan.KindDashboard}
	case containsAny(q, multiChartKeywords):
		result = f.planMultiChart(q, mentioned, t)
	case containsAny(q, statsKeywords):
		result = f.planStats(mentioned, t)
	case containsAny(q, chartKeywords):
		result = &plan.Result{Kind: plan.KindChart, Charts: []plan.ChartSpec{f.pickChart(q, mentioned, t)}}
	case containsAny(q, filterKeywords):
		result = f.planFilter(question, mentioned, t)
	default:
		result = &plan.Result{
			Kind: plan.KindAnswer,
			Answer: fmt.Sprintf(
				"I couldn't match that question to an analysis. Try asking for summary statistics, "+
					"a chart, or a dashboard. Available columns: %s.",
				strings.Join(t.ColumnNames(), ", ")),
		}
	}

	result.Source = "rules"
	result.Confidence = 0.4

	if err := result.Validate(t); err != nil {
		return nil, err
	}

	return result, nil
}

// planStats summarizes the mentioned numeric columns, or all of them.
func (f *FallbackService) planStats(mentioned []table.Column, t *table.Table) *plan.Result {
	cols := numericOnly(mentioned)
	if len(cols) == 0 {
		cols = t.ColumnsOfType(table.TypeNumeric)
	}

	if len(cols) == 0 {
		return &plan.Result{
			Kind:   plan.KindAnswer,
			Answer: "This table has no numeric columns to summarize.",
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	return &plan.Result{Kind: plan.KindStats, Columns: names}
}

// planMultiChart pairs each mentioned numeric column with a histogram, or
// falls back to a dashboard when nothing specific was named.
func (f *FallbackService) planMultiChart(q string, mentioned []table.Column, t *table.Table) *plan.Result {
	cols := numericOnly(mentioned)
	if len(cols) == 0 {
		return &plan.Result{Kind: plan.KindDashboard}
	}

	charts := make([]plan.ChartSpec, 0, len(cols))
	for _, c := range cols {
		charts = append(charts, f.pickChart(q, []table.Column{c}, t))
	}

	return &plan.Result{Kind: plan.KindMultiChart, Charts: charts}
}

// pickChart chooses a chart type from the question wording and binds it to
// the mentioned columns, with schema-driven defaults.
func (f *FallbackService) pickChart(q string, mentioned []table.Column, t *table.Table) plan.ChartSpec {
	numeric := numericOnly(mentioned)
	categorical := categoricalOnly(mentioned)

	firstNumeric := firstOfType(numeric, t, table.TypeNumeric)
	firstCategorical := firstOfType(categorical, t, table.TypeCategorical)

	switch {
	case strings.Contains(q, "scatter") || strings.Contains(q, " vs ") ||
		strings.Contains(q, "versus") || strings.Contains(q, "relationship"):
		if len(numeric) >= 2 {
			return plan.ChartSpec{Type: plan.ChartScatter, X: numeric[0].Name, Y: numeric[1].Name}
		}

		all := t.ColumnsOfType(table.TypeNumeric)
		if len(all) >= 2 {
			return plan.ChartSpec{Type: plan.ChartScatter, X: all[0].Name, Y: all[1].Name}
		}

	case strings.Contains(q, "correlation") || strings.Contains(q, "heatmap"):
		all := t.ColumnsOfType(table.TypeNumeric)
		if len(all) >= 2 {
			names := make([]string, len(all))
			for i, c := range all {
				names[i] = c.Name
			}

			return plan.ChartSpec{Type: plan.ChartHeatmap, Columns: names}
		}

	case strings.Contains(q, "box") || strings.Contains(q, "outlier"):
		if firstNumeric != "" {
			return plan.ChartSpec{Type: plan.ChartBox, X: firstNumeric}
		}

	case strings.Contains(q, "histogram") || strings.Contains(q, "distribution"):
		if firstNumeric != "" {
			return plan.ChartSpec{Type: plan.ChartHistogram, X: firstNumeric}
		}

	case strings.Contains(q, "pie") || strings.Contains(q, "share") || strings.Contains(q, "proportion"):
		if firstCategorical != "" {
			return plan.ChartSpec{Type: plan.ChartPie, X: firstCategorical, Aggregation: "count"}
		}

	case strings.Contains(q, "line") || strings.Contains(q, "trend") || strings.Contains(q, "over time"):
		if dt := t.ColumnsOfType(table.TypeDatetime); len(dt) > 0 && firstNumeric != "" {
			return plan.ChartSpec{
				Type: plan.ChartLine, X: dt[0].Name, Y: firstNumeric, Aggregation: pickAggregation(q),
			}
		}
	}

	// Default: bar of a numeric column per category, or a histogram when the
	// table has no categorical columns.
	if firstCategorical != "" && firstNumeric != "" {
		return plan.ChartSpec{
			Type: plan.ChartBar, X: firstCategorical, Y: firstNumeric, Aggregation: pickAggregation(q),
		}
	}

	if firstCategorical != "" {
		return plan.ChartSpec{Type: plan.ChartBar, X: firstCategorical, Aggregation: "count"}
	}

	if firstNumeric != "" {
		return plan.ChartSpec{Type: plan.ChartHistogram, X: firstNumeric}
	}

	// Last resort: count the first column.
	return plan.ChartSpec{Type: plan.ChartBar, X: t.Columns[0].Name, Aggregation: "count"}
}

// comparisonPattern matches "<column words> <op words> <number>" fragments.
var comparisonPattern = regexp.MustCompile(
	`(?i)(greater than|more than|at least|over|above|less than|fewer than|at most|under|below)\s+([\d.,]+)`)

// planFilter builds a table descriptor from simple comparison phrases.
func (f *FallbackService) planFilter(question string, mentioned []table.Column, t *table.Table) *plan.Result {
	result := &plan.Result{Kind: plan.KindTable, Limit: 50}

	m := comparisonPattern.FindStringSubmatch(question)
	if m != nil {
		op := "gt"

		switch strings.ToLower(m[1]) {
		case "less than", "fewer than", "under", "below":
			op = "lt"
		case "at least":
			op = "gte"
		case "at most":
			op = "lte"
		}

		col := ""
		if numeric := numericOnly(mentioned); len(numeric) > 0 {
			col = numeric[0].Name
		} else if all := t.ColumnsOfType(table.TypeNumeric); len(all) > 0 {
			col = all[0].Name
		}

		if col != "" {
			result.Filters = append(result.Filters, plan.Filter{
				Column: col, Op: op, Value: strings.ReplaceAll(m[2], ",", ""),
			})
		}
	}

	return result
}

func pickAggregation(q string) string {
	switch {
	case strings.Contains(q, "average") || strings.Contains(q, "mean"):
		return "mean"
	case strings.Contains(q, "median"):
		return "median"
	case strings.Contains(q, "count") || strings.Contains(q, "number of") || strings.Contains(q, "how many"):
		return "count"
	case strings.Contains(q, "max") || strings.Contains(q, "highest") || strings.Contains(q, "largest"):
		return "max"
	case strings.Contains(q, "min") || strings.Contains(q, "lowest") || strings.Contains(q, "smallest"):
		return "min"
	default:
		return "sum"
	}
}

// mentionedColumns returns schema columns whose name or key appears in the
// lowercased question, in schema order.
func mentionedColumns(q string, t *table.Table) []table.Column {
	var out []table.Column

	for _, c := range t.Columns {
		name := strings.ToLower(c.Name)
		key := strings.ReplaceAll(c.Key, "_", " ")

		if strings.Contains(q, name) || (key != "" && strings.Contains(q, key)) {
			out = append(out, c)
		}
	}

	return out
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}

	return false
}

func numericOnly(cols []table.Column) []table.Column {
	var out []table.Column

	for _, c := range cols {
		if c.Type == table.TypeNumeric {
			out = append(out, c)
		}
	}

	return out
}

func categoricalOnly(cols []table.Column) []table.Column {
	var out []table.Column

	for _, c := range cols {
		if c.Type == table.TypeCategorical || c.Type == table.TypeBoolean {
			out = append(out, c)
		}
	}

	return out
}

// firstOfType returns the first preferred column name, falling back to the
// first schema column of that type.
func firstOfType(preferred []table.Column, t *table.Table, ct table.ColumnType) string {
	if len(preferred) > 0 {
		return preferred[0].Name
	}

	cols := t.ColumnsOfType(ct)
	if ct == table.TypeCategorical {
		cols = append(cols, t.ColumnsOfType(table.TypeBoolean)...)
	}

	if len(cols) > 0 {
		return cols[0].Name
	}

	return ""
}
