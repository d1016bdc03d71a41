package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

func fallbackTable() *table.Table {
	cols := []table.Column{
		{Name: "Region", Key: "region", Type: table.TypeCategorical, Index: 0},
		{Name: "Sales", Key: "sales", Type: table.TypeNumeric, Index: 1},
		{Name: "Units", Key: "units", Type: table.TypeNumeric, Index: 2},
		{Name: "Order Date", Key: "order_date", Type: table.TypeDatetime, Index: 3},
	}

	return &table.Table{
		Columns:  cols,
		Profiles: make([]table.ColumnProfile, len(cols)),
		RowCount: 50,
	}
}

func plannedKind(t *testing.T, question string) *plan.Result {
	t.Helper()

	result, err := NewFallbackService().Plan(context.Background(), question, fallbackTable())
	require.NoError(t, err)
	require.Equal(t, "rules", result.Source)

	return result
}

func TestFallbackDashboard(t *testing.T) {
	for _, q := range []string{
		"show me a dashboard",
		"give me an overview of this data",
		"let's explore the file",
	} {
		result := plannedKind(t, q)
		assert.Equal(t, plan.KindDashboard, result.Kind, "question: %s", q)
	}
}

func TestFallbackStats(t *testing.T) {
	result := plannedKind(t, "what is the average of sales?")

	require.Equal(t, plan.KindStats, result.Kind)
	assert.Equal(t, []string{"Sales"}, result.Columns)
}

func TestFallbackStatsAllNumeric(t *testing.T) {
	result := plannedKind(t, "describe the data")

	require.Equal(t, plan.KindStats, result.Kind)
	assert.Equal(t, []string{"Sales", "Units"}, result.Columns)
}

func TestFallbackHistogram(t *testing.T) {
	result := plannedKind(t, "show the distribution of units")

	require.Equal(t, plan.KindChart, result.Kind)
	require.Len(t, result.Charts, 1)
	assert.Equal(t, plan.ChartHistogram, result.Charts[0].Type)
	assert.Equal(t, "Units", result.Charts[0].X)
}

func TestFallbackScatter(t *testing.T) {
	result := plannedKind(t, "plot sales vs units")

	require.Equal(t, plan.KindChart, result.Kind)
	c := result.Charts[0]
	assert.Equal(t, plan.ChartScatter, c.Type)
	assert.Equal(t, "Sales", c.X)
	assert.Equal(t, "Units", c.Y)
}

func TestFallbackHeatmap(t *testing.T) {
	result := plannedKind(t, "show a correlation heatmap")

	c := result.Charts[0]
	assert.Equal(t, plan.ChartHeatmap, c.Type)
	assert.Equal(t, []string{"Sales", "Units"}, c.Columns)
}

func TestFallbackBox(t *testing.T) {
	result := plannedKind(t, "are there outliers in sales?")

	c := result.Charts[0]
	assert.Equal(t, plan.ChartBox, c.Type)
	assert.Equal(t, "Sales", c.X)
}

func TestFallbackLineOverTime(t *testing.T) {
	result := plannedKind(t, "chart the trend of sales")

	c := result.Charts[0]
	assert.Equal(t, plan.ChartLine, c.Type)
	assert.Equal(t, "Order Date", c.X)
	assert.Equal(t, "Sales", c.Y)
}

func TestFallbackBarDefault(t *testing.T) {
	result := plannedKind(t, "chart sales for each region")

	c := result.Charts[0]
	assert.Equal(t, plan.ChartBar, c.Type)
	assert.Equal(t, "Region", c.X)
	assert.Equal(t, "Sales", c.Y)
	assert.Equal(t, "sum", c.Aggregation)
}

func TestFallbackFilter(t *testing.T) {
	result := plannedKind(t, "show rows where sales greater than 1,000")

	require.Equal(t, plan.KindTable, result.Kind)
	require.Len(t, result.Filters, 1)
	assert.Equal(t, plan.Filter{Column: "Sales", Op: "gt", Value: "1000"}, result.Filters[0])
	assert.Equal(t, 50, result.Limit)
}

func TestFallbackFilterLessThan(t *testing.T) {
	result := plannedKind(t, "filter units less than 10")

	require.Len(t, result.Filters, 1)
	assert.Equal(t, "lt", result.Filters[0].Op)
	assert.Equal(t, "Units", result.Filters[0].Column)
}

func TestFallbackGuidance(t *testing.T) {
	result := plannedKind(t, "what's the weather like?")

	require.Equal(t, plan.KindAnswer, result.Kind)
	assert.Contains(t, result.Answer, "Region")
}

func TestFallbackMultiChart(t *testing.T) {
	result := plannedKind(t, "show several plots of sales and units")

	require.Equal(t, plan.KindMultiChart, result.Kind)
	assert.Len(t, result.Charts, 2)
}

func TestFallbackResultsValidate(t *testing.T) {
	questions := []string{
		"dashboard please",
		"average sales",
		"histogram of units",
		"rows where sales over 100",
		"hello",
	}

	for _, q := range questions {
		result := plannedKind(t, q)
		assert.NoError(t, result.Validate(fallbackTable()), "question: %s", q)
	}
}
