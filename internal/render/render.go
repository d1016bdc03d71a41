// Package render executes analysis descriptors against the dataset store and
// shapes the results into transcript-ready payloads. Charts come out as data
// series; drawing happens client-side.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sheetchat/sheetchat/internal/dataset"
	scerrors "github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/logging"
	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

const (
	defaultBins       = 10
	defaultTopValues  = 10
	defaultRowLimit   = 50
	maxScatterPoints  = 1000
	maxDashboardPanel = 5
)

// Datasets is the slice of the dataset store the renderer needs.
type Datasets interface {
	Describe(ctx context.Context, id, column string) (*dataset.DescribeResult, error)
	ValueCounts(ctx context.Context, id, column string, limit int) ([]dataset.ValueCount, error)
	GroupBy(ctx context.Context, id, groupCol, valueCol, agg string, limit int) ([]dataset.GroupResult, error)
	Histogram(ctx context.Context, id, column string, bins int) ([]dataset.HistogramBucket, error)
	BoxStats(ctx context.Context, id, column string) (*dataset.BoxResult, error)
	Correlation(ctx context.Context, id string, columns []string) (*dataset.CorrelationResult, error)
	Filter(ctx context.Context, id string, conds []dataset.FilterCondition, limit int) (*dataset.FilterResult, error)
}

// Chart is one renderable chart with its data series.
type Chart struct {
	Type   plan.ChartType             `json:"type"`
	Title  string                     `json:"title"`
	X      string                     `json:"x,omitempty"`
	Y      string                     `json:"y,omitempty"`
	Groups []dataset.GroupResult      `json:"groups,omitempty"`
	Bucket []dataset.HistogramBucket  `json:"buckets,omitempty"`
	Box    *dataset.BoxResult         `json:"box,omitempty"`
	Matrix *dataset.CorrelationResult `json:"matrix,omitempty"`
	Points [][2]float64               `json:"points,omitempty"`
}

// Stats is the summary block for one column.
type Stats struct {
	Column  string                  `json:"column"`
	Summary *dataset.DescribeResult `json:"summary"`
}

// Response is the rendered reply to one question.
type Response struct {
	Kind   plan.Kind             `json:"kind"`
	Text   string                `json:"text,omitempty"`
	Stats  []Stats               `json:"stats,omitempty"`
	Charts []Chart               `json:"charts,omitempty"`
	Table  *dataset.FilterResult `json:"table,omitempty"`
	Source string                `json:"source,omitempty"`
	Error  bool                  `json:"error,omitempty"`
}

// Renderer executes descriptors.
type Renderer struct {
	store Datasets
}

// NewRenderer creates a renderer over a dataset store.
func NewRenderer(store Datasets) *Renderer {
	return &Renderer{store: store}
}

// Render executes one descriptor. Errors mean the descriptor could not be
// served at all; partial dashboard failures are skipped, not surfaced.
func (r *Renderer) Render(ctx context.Context, result *plan.Result, t *table.Table, datasetID string) (*Response, error) {
	resp := &Response{Kind: result.Kind, Source: result.Source}

	switch result.Kind {
	case plan.KindAnswer:
		resp.Text = result.Answer

	case plan.KindStats:
		for _, col := range result.Columns {
			c, ok := t.FindColumn(col)
			if !ok || c.Type != table.TypeNumeric {
				continue
			}

			summary, err := r.store.Describe(ctx, datasetID, c.Name)
			if err != nil {
				return nil, err
			}

			resp.Stats = append(resp.Stats, Stats{Column: c.Name, Summary: summary})
		}

		if len(resp.Stats) == 0 {
			return nil, scerrors.New(scerrors.ErrTypeRender,
				"none of the requested columns are numeric")
		}

	case plan.KindChart, plan.KindMultiChart:
		for _, spec := range result.Charts {
			chart, err := r.renderChart(ctx, spec, datasetID)
			if err != nil {
				return nil, err
			}

			resp.Charts = append(resp.Charts, *chart)
		}

	case plan.KindDashboard:
		resp.Charts = r.renderDashboard(ctx, t, datasetID)
		if len(resp.Charts) == 0 {
			return nil, scerrors.New(scerrors.ErrTypeRender,
				"no dashboard panels could be built for this table")
		}

	case plan.KindTable:
		conds := make([]dataset.FilterCondition, len(result.Filters))
		for i, f := range result.Filters {
			conds[i] = dataset.FilterCondition{Column: f.Column, Op: f.Op, Value: f.Value}
		}

		limit := result.Limit
		if limit <= 0 {
			limit = defaultRowLimit
		}

		tbl, err := r.store.Filter(ctx, datasetID, conds, limit)
		if err != nil {
			return nil, err
		}

		resp.Table = tbl

	default:
		return nil, scerrors.Newf(scerrors.ErrTypeRender, "unknown result kind: %s", result.Kind)
	}

	return resp, nil
}

// renderChart executes one chart spec.
func (r *Renderer) renderChart(ctx context.Context, spec plan.ChartSpec, datasetID string) (*Chart, error) {
	chart := &Chart{Type: spec.Type, Title: spec.Title, X: spec.X, Y: spec.Y}
	if chart.Title == "" {
		chart.Title = defaultTitle(spec)
	}

	switch spec.Type {
	case plan.ChartHistogram:
		buckets, err := r.store.Histogram(ctx, datasetID, spec.X, defaultBins)
		if err != nil {
			return nil, err
		}

		chart.Bucket = buckets

	case plan.ChartBox:
		box, err := r.store.BoxStats(ctx, datasetID, spec.X)
		if err != nil {
			return nil, err
		}

		chart.Box = box

	case plan.ChartHeatmap:
		matrix, err := r.store.Correlation(ctx, datasetID, spec.Columns)
		if err != nil {
			return nil, err
		}

		chart.Matrix = matrix

	case plan.ChartScatter:
		points, err := r.scatterPoints(ctx, datasetID, spec.X, spec.Y)
		if err != nil {
			return nil, err
		}

		chart.Points = points

	case plan.ChartBar, plan.ChartLine, plan.ChartPie:
		agg := spec.Aggregation
		if agg == "" {
			agg = "sum"
		}

		if spec.Y == "" {
			agg = "count"
		}

		groups, err := r.store.GroupBy(ctx, datasetID, spec.X, spec.Y, agg, defaultTopValues)
		if err != nil {
			return nil, err
		}

		chart.Groups = groups

	default:
		return nil, scerrors.Newf(scerrors.ErrTypeRender, "unknown chart type: %s", spec.Type)
	}

	return chart, nil
}

// scatterPoints pulls paired values through the filter operation.
func (r *Renderer) scatterPoints(ctx context.Context, datasetID, x, y string) ([][2]float64, error) {
	res, err := r.store.Filter(ctx, datasetID, nil, maxScatterPoints)
	if err != nil {
		return nil, err
	}

	xi, yi := -1, -1

	for i, col := range res.Columns {
		if col == x {
			xi = i
		}

		if col == y {
			yi = i
		}
	}

	if xi == -1 || yi == -1 {
		return nil, scerrors.Newf(scerrors.ErrTypeRender, "scatter columns not found: %s, %s", x, y)
	}

	var points [][2]float64

	for _, row := range res.Rows {
		fx, okx := table.ParseNumber(row[xi])
		fy, oky := table.ParseNumber(row[yi])

		if okx && oky {
			points = append(points, [2]float64{fx, fy})
		}
	}

	return points, nil
}

// renderDashboard walks a fixed checklist of panels and keeps whatever works:
// a histogram of the first numeric column, bars for the top categories, a
// correlation heatmap, a box plot, and a scatter of the first numeric pair.
// Failed panels are logged and skipped.
func (r *Renderer) renderDashboard(ctx context.Context, t *table.Table, datasetID string) []Chart {
	numeric := t.ColumnsOfType(table.TypeNumeric)
	categorical := t.ColumnsOfType(table.TypeCategorical)

	var specs []plan.ChartSpec

	if len(numeric) > 0 {
		specs = append(specs, plan.ChartSpec{Type: plan.ChartHistogram, X: numeric[0].Name})
	}

	if len(categorical) > 0 {
		specs = append(specs, plan.ChartSpec{
			Type: plan.ChartBar, X: categorical[0].Name, Aggregation: "count",
			Title: fmt.Sprintf("Top values of %s", categorical[0].Name),
		})
	}

	if len(numeric) >= 2 {
		names := make([]string, len(numeric))
		for i, c := range numeric {
			names[i] = c.Name
		}

		specs = append(specs, plan.ChartSpec{Type: plan.ChartHeatmap, Columns: names})
	}

	if len(numeric) > 0 {
		specs = append(specs, plan.ChartSpec{Type: plan.ChartBox, X: numeric[0].Name})
	}

	if len(numeric) >= 2 {
		specs = append(specs, plan.ChartSpec{
			Type: plan.ChartScatter, X: numeric[0].Name, Y: numeric[1].Name,
		})
	}

	// Tables with no numeric and no categorical columns still get one panel
	// counting the first column.
	if len(specs) == 0 && len(t.Columns) > 0 {
		specs = append(specs, plan.ChartSpec{
			Type: plan.ChartBar, X: t.Columns[0].Name, Aggregation: "count",
		})
	}

	if len(specs) > maxDashboardPanel {
		specs = specs[:maxDashboardPanel]
	}

	var charts []Chart

	for _, spec := range specs {
		chart, err := r.renderChart(ctx, spec, datasetID)
		if err != nil {
			logging.GetLogger().WithField("chart", string(spec.Type)).
				WithError(err).Debug("skipping dashboard panel")

			continue
		}

		charts = append(charts, *chart)
	}

	return charts
}

// ErrorResponse wraps a failure as a text entry so the conversation keeps a
// record of what went wrong.
func ErrorResponse(err error) *Response {
	text := "Sorry, I couldn't complete that analysis."

	var scErr *scerrors.Error
	if errors.As(err, &scErr) {
		text = fmt.Sprintf("Sorry, I couldn't complete that analysis: %s.", scErr.Message)

		if len(scErr.Suggestions) > 0 {
			text += " " + scErr.Suggestions[0]
		}
	}

	return &Response{Kind: plan.KindAnswer, Text: text, Error: true}
}

func defaultTitle(spec plan.ChartSpec) string {
	switch spec.Type {
	case plan.ChartHistogram:
		return fmt.Sprintf("Distribution of %s", spec.X)
	case plan.ChartBox:
		return fmt.Sprintf("Outliers in %s", spec.X)
	case plan.ChartHeatmap:
		return "Correlation matrix"
	case plan.ChartScatter:
		return fmt.Sprintf("%s vs %s", spec.X, spec.Y)
	case plan.ChartPie:
		return fmt.Sprintf("Share of %s", spec.X)
	default:
		if spec.Y != "" {
			agg := spec.Aggregation
			if agg == "" {
				agg = "sum"
			}

			return fmt.Sprintf("%s of %s by %s", capitalize(agg), spec.Y, spec.X)
		}

		return fmt.Sprintf("Count by %s", spec.X)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
