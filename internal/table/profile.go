package table

import (
	"math"
	"strings"
	"time"
)

// welford accumulates mean and variance in a single pass.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

func (w *welford) stdDev() float64 {
	if w.n < 2 {
		return 0
	}

	return math.Sqrt(w.m2 / float64(w.n-1))
}

// profileColumn computes aggregate statistics for one typed column.
func profileColumn(ct ColumnType, values []string) ColumnProfile {
	p := ColumnProfile{}
	distinct := make(map[string]struct{})

	var (
		w       welford
		min     = math.Inf(1)
		max     = math.Inf(-1)
		minTime time.Time
		maxTime time.Time
	)

	for _, v := range values {
		if IsMissing(v) {
			p.Missing++
			continue
		}

		p.NonNull++
		distinct[strings.TrimSpace(v)] = struct{}{}

		switch ct {
		case TypeNumeric:
			if f, ok := ParseNumber(v); ok {
				w.add(f)

				if f < min {
					min = f
				}

				if f > max {
					max = f
				}
			}
		case TypeDatetime:
			if t, ok := ParseDatetime(v); ok {
				if minTime.IsZero() || t.Before(minTime) {
					minTime = t
				}

				if maxTime.IsZero() || t.After(maxTime) {
					maxTime = t
				}
			}
		}
	}

	p.Cardinality = len(distinct)

	if ct == TypeNumeric && w.n > 0 {
		p.Numeric = &NumericProfile{
			Min:    min,
			Max:    max,
			Mean:   w.mean,
			StdDev: w.stdDev(),
		}
	}

	if ct == TypeDatetime && !minTime.IsZero() {
		p.Datetime = &DatetimeProfile{Min: minTime, Max: maxTime}
	}

	return p
}
