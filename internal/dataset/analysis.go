package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	scerrors "github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/table"
)

// maxOutlierValues caps how many individual outliers BoxStats reports.
const maxOutlierValues = 50

// DescribeResult summarizes a numeric column.
type DescribeResult struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// ValueCount is one entry of a categorical frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult is one aggregated group.
type GroupResult struct {
	Group string  `json:"group"`
	Value float64 `json:"value"`
}

// HistogramBucket is one bin of a histogram.
type HistogramBucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// BoxResult holds the five-number summary plus IQR-fence outliers.
type BoxResult struct {
	Min      float64   `json:"min"`
	Q1       float64   `json:"q1"`
	Median   float64   `json:"median"`
	Q3       float64   `json:"q3"`
	Max      float64   `json:"max"`
	Outliers []float64 `json:"outliers"`
}

// CorrelationResult is a symmetric Pearson correlation matrix.
type CorrelationResult struct {
	Columns []string    `json:"columns"`
	Matrix  [][]float64 `json:"matrix"`
}

// FilterCondition is one predicate of a row filter.
type FilterCondition struct {
	Column string `json:"column"`
	Op     string `json:"op"` // eq, neq, gt, lt, gte, lte, contains
	Value  string `json:"value"`
}

// FilterResult holds filtered rows rendered as strings.
type FilterResult struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

// Describe computes summary statistics for a numeric column.
func (s *Store) Describe(ctx context.Context, id, column string) (*DescribeResult, error) {
	if !validID(id) {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	col := quoteIdent(column)
	q := fmt.Sprintf(`SELECT count(%[1]s), coalesce(avg(%[1]s), 0), coalesce(stddev_samp(%[1]s), 0),
		coalesce(min(%[1]s), 0), coalesce(quantile_cont(%[1]s, 0.25), 0),
		coalesce(quantile_cont(%[1]s, 0.5), 0), coalesce(quantile_cont(%[1]s, 0.75), 0),
		coalesce(max(%[1]s), 0) FROM %[2]s`, col, id)

	var r DescribeResult

	err := s.db.QueryRowContext(ctx, q).Scan(
		&r.Count, &r.Mean, &r.StdDev, &r.Min, &r.Q25, &r.Median, &r.Q75, &r.Max)
	if err != nil {
		return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to describe column %s", column)
	}

	return &r, nil
}

// ValueCounts returns the most frequent values of a column, ties broken by
// value for stable output.
func (s *Store) ValueCounts(ctx context.Context, id, column string, limit int) ([]ValueCount, error) {
	if !validID(id) {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	col := quoteIdent(column)
	q := fmt.Sprintf(`SELECT CAST(%[1]s AS VARCHAR), count(*) FROM %[2]s
		WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY count(*) DESC, 1 LIMIT ?`, col, id)

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to count values of %s", column)
	}
	defer rows.Close()

	var out []ValueCount

	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to scan value count")
		}

		out = append(out, vc)
	}

	return out, rows.Err()
}

// aggFuncs maps descriptor aggregation names to SQL.
var aggFuncs = map[string]string{
	"sum":    "sum",
	"mean":   "avg",
	"avg":    "avg",
	"count":  "count",
	"min":    "min",
	"max":    "max",
	"median": "median",
}

// GroupBy aggregates a value column per group. An empty value column is only
// valid with the count aggregation.
func (s *Store) GroupBy(ctx context.Context, id, groupCol, valueCol, agg string, limit int) ([]GroupResult, error) {
	if !validID(id) {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	fn, ok := aggFuncs[strings.ToLower(agg)]
	if !ok {
		return nil, scerrors.Newf(scerrors.ErrTypeDataset, "unsupported aggregation: %s", agg)
	}

	expr := fmt.Sprintf("%s(%s)", fn, quoteIdent(valueCol))
	if valueCol == "" {
		if fn != "count" {
			return nil, scerrors.Newf(scerrors.ErrTypeDataset, "aggregation %s requires a value column", agg)
		}

		expr = "count(*)"
	}

	g := quoteIdent(groupCol)
	q := fmt.Sprintf(`SELECT CAST(%s AS VARCHAR), CAST(%s AS DOUBLE) FROM %s
		WHERE %s IS NOT NULL GROUP BY %s ORDER BY 2 DESC, 1 LIMIT ?`, g, expr, id, g, g)

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to group by %s", groupCol)
	}
	defer rows.Close()

	var out []GroupResult

	for rows.Next() {
		var gr GroupResult

		var v sql.NullFloat64
		if err := rows.Scan(&gr.Group, &v); err != nil {
			return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to scan group")
		}

		gr.Value = v.Float64
		out = append(out, gr)
	}

	return out, rows.Err()
}

// Histogram bins a numeric column into equal-width buckets.
func (s *Store) Histogram(ctx context.Context, id, column string, bins int) ([]HistogramBucket, error) {
	if !validID(id) {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	if bins < 1 {
		bins = 10
	}

	col := quoteIdent(column)

	var lo, hi sql.NullFloat64

	q := fmt.Sprintf("SELECT min(%[1]s), max(%[1]s) FROM %[2]s", col, id)
	if err := s.db.QueryRowContext(ctx, q).Scan(&lo, &hi); err != nil {
		return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to range column %s", column)
	}

	if !lo.Valid {
		return nil, nil
	}

	width := (hi.Float64 - lo.Float64) / float64(bins)
	if width == 0 {
		// Constant column: a single bucket holds everything.
		var n int

		q = fmt.Sprintf("SELECT count(%s) FROM %s", col, id)
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to count column %s", column)
		}

		return []HistogramBucket{{Low: lo.Float64, High: hi.Float64, Count: n}}, nil
	}

	q = fmt.Sprintf(`SELECT least(CAST(floor((%[1]s - ?) / ?) AS INTEGER), ?), count(*)
		FROM %[2]s WHERE %[1]s IS NOT NULL GROUP BY 1`, col, id)

	rows, err := s.db.QueryContext(ctx, q, lo.Float64, width, bins-1)
	if err != nil {
		return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to bin column %s", column)
	}
	defer rows.Close()

	counts := make([]int, bins)

	for rows.Next() {
		var bucket, n int
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to scan bucket")
		}

		if bucket >= 0 && bucket < bins {
			counts[bucket] = n
		}
	}

	if err := rows.Err(); err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to read buckets")
	}

	out := make([]HistogramBucket, bins)
	for i := range out {
		out[i] = HistogramBucket{
			Low:   lo.Float64 + float64(i)*width,
			High:  lo.Float64 + float64(i+1)*width,
			Count: counts[i],
		}
	}

	return out, nil
}

// BoxStats computes the five-number summary of a numeric column plus the
// values outside the 1.5*IQR fences.
func (s *Store) BoxStats(ctx context.Context, id, column string) (*BoxResult, error) {
	d, err := s.Describe(ctx, id, column)
	if err != nil {
		return nil, err
	}

	if d.Count == 0 {
		return nil, scerrors.Newf(scerrors.ErrTypeDataset, "column %s has no values", column)
	}

	iqr := d.Q75 - d.Q25
	loFence := d.Q25 - 1.5*iqr
	hiFence := d.Q75 + 1.5*iqr

	col := quoteIdent(column)
	q := fmt.Sprintf(`SELECT %[1]s FROM %[2]s
		WHERE %[1]s < ? OR %[1]s > ? ORDER BY %[1]s LIMIT ?`, col, id)

	rows, err := s.db.QueryContext(ctx, q, loFence, hiFence, maxOutlierValues)
	if err != nil {
		return nil, scerrors.Wrapf(err, scerrors.ErrTypeDataset, "failed to find outliers in %s", column)
	}
	defer rows.Close()

	outliers := []float64{}

	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to scan outlier")
		}

		outliers = append(outliers, v)
	}

	if err := rows.Err(); err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to read outliers")
	}

	return &BoxResult{
		Min:      d.Min,
		Q1:       d.Q25,
		Median:   d.Median,
		Q3:       d.Q75,
		Max:      d.Max,
		Outliers: outliers,
	}, nil
}

// Correlation computes the pairwise Pearson correlation of numeric columns.
func (s *Store) Correlation(ctx context.Context, id string, columns []string) (*CorrelationResult, error) {
	if !validID(id) {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	if len(columns) < 2 {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "correlation requires at least two columns")
	}

	var exprs []string

	for i := range columns {
		for j := i + 1; j < len(columns); j++ {
			exprs = append(exprs, fmt.Sprintf("coalesce(corr(%s, %s), 0)",
				quoteIdent(columns[i]), quoteIdent(columns[j])))
		}
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), id)

	vals := make([]float64, len(exprs))
	ptrs := make([]interface{}, len(exprs))

	for i := range vals {
		ptrs[i] = &vals[i]
	}

	if err := s.db.QueryRowContext(ctx, q).Scan(ptrs...); err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to compute correlations")
	}

	n := len(columns)
	matrix := make([][]float64, n)

	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}

	k := 0

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			matrix[i][j] = vals[k]
			matrix[j][i] = vals[k]
			k++
		}
	}

	return &CorrelationResult{Columns: columns, Matrix: matrix}, nil
}

// filterOps maps descriptor operators to SQL.
var filterOps = map[string]string{
	"eq":       "=",
	"neq":      "!=",
	"gt":       ">",
	"lt":       "<",
	"gte":      ">=",
	"lte":      "<=",
	"contains": "ILIKE",
}

// Filter returns the rows matching every condition, capped at limit. Total
// reports the uncapped match count.
func (s *Store) Filter(ctx context.Context, id string, conds []FilterCondition, limit int) (*FilterResult, error) {
	if !validID(id) {
		return nil, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	var (
		where []string
		args  []interface{}
	)

	for _, c := range conds {
		op, ok := filterOps[strings.ToLower(c.Op)]
		if !ok {
			return nil, scerrors.Newf(scerrors.ErrTypeDataset, "unsupported filter operator: %s", c.Op)
		}

		if op == "ILIKE" {
			where = append(where, fmt.Sprintf("CAST(%s AS VARCHAR) ILIKE ?", quoteIdent(c.Column)))
			args = append(args, "%"+c.Value+"%")
		} else {
			where = append(where, fmt.Sprintf("%s %s ?", quoteIdent(c.Column), op))

			// Numeric literals compare against DOUBLE columns; everything
			// else is passed through as text.
			if f, ok := table.ParseNumber(c.Value); ok {
				args = append(args, f)
			} else {
				args = append(args, c.Value)
			}
		}
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int

	countQ := fmt.Sprintf("SELECT count(*) FROM %s%s", id, clause)
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to count filtered rows")
	}

	q := fmt.Sprintf("SELECT * FROM %s%s LIMIT %d", id, clause, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to filter rows")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to read result columns")
	}

	result := &FilterResult{Columns: cols, Total: total}

	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))

		for i := range raw {
			ptrs[i] = &raw[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to scan filtered row")
		}

		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = formatValue(v)
		}

		result.Rows = append(result.Rows, row)
	}

	return result, rows.Err()
}

// formatValue renders a scanned SQL value for display.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}

		return x.Format("2006-01-02 15:04:05")
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// RowCount returns the number of rows in a dataset.
func (s *Store) RowCount(ctx context.Context, id string) (int, error) {
	if !validID(id) {
		return 0, scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+id).Scan(&n); err != nil {
		return 0, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to count rows")
	}

	return n, nil
}
