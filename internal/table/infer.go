package table

import (
	"strconv"
	"strings"
	"time"
)

const (
	// numericThreshold is the share of non-empty cells that must parse as
	// numbers for a column to be treated as numeric. Strictly more than
	// the threshold: exactly 80% numeric stays text.
	numericThreshold = 0.8

	// datetimeThreshold mirrors numericThreshold for date parsing.
	datetimeThreshold = 0.8

	// categoricalMaxCardinality caps how many distinct values a text column
	// may have and still count as categorical.
	categoricalMaxCardinality = 50

	// categoricalMaxRatio is the distinct-to-total ratio ceiling for
	// categorical columns on larger tables.
	categoricalMaxRatio = 0.5
)

// datetimeLayouts are tried in order when parsing cell values as dates.
var datetimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
}

// dateNameHints are substrings of column names that bias inference toward
// datetime when the values alone are ambiguous.
var dateNameHints = []string{"date", "time", "day", "month", "year", "created", "updated", "timestamp"}

// ParseNumber parses a cell as a float, tolerating thousands separators,
// currency symbols, and percent signs.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")

	pct := strings.HasSuffix(s, "%")
	if pct {
		s = strings.TrimSuffix(s, "%")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	if pct {
		f /= 100
	}

	return f, true
}

// ParseDatetime parses a cell against the known layouts.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseBool recognizes common boolean spellings.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y":
		return true, true
	case "false", "no", "n":
		return false, true
	}

	return false, false
}

// IsMissing reports whether a cell should be treated as a missing value.
func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "n/a", "nan", "null", "none", "-":
		return true
	}

	return false
}

// InferColumnType inspects the non-missing values of a column and decides
// its type. The column name nudges ambiguous columns toward datetime when it
// carries a date-like hint.
func InferColumnType(name string, values []string) ColumnType {
	var (
		nonEmpty  int
		numeric   int
		datetime  int
		boolean   int
		distinct  = make(map[string]struct{})
		nameHints = hasDateHint(name)
	)

	for _, v := range values {
		if IsMissing(v) {
			continue
		}

		nonEmpty++
		distinct[strings.TrimSpace(v)] = struct{}{}

		if _, ok := ParseNumber(v); ok {
			numeric++
		}

		if _, ok := ParseDatetime(v); ok {
			datetime++
		}

		if _, ok := parseBool(v); ok {
			boolean++
		}
	}

	if nonEmpty == 0 {
		return TypeText
	}

	if boolean == nonEmpty && len(distinct) <= 2 {
		return TypeBoolean
	}

	numericShare := float64(numeric) / float64(nonEmpty)
	datetimeShare := float64(datetime) / float64(nonEmpty)

	// Year-like integer columns parse as numbers; the name hint breaks the tie.
	if datetimeShare > datetimeThreshold {
		return TypeDatetime
	}

	if numericShare > numericThreshold {
		if nameHints && datetimeShare > 0 {
			return TypeDatetime
		}

		return TypeNumeric
	}

	if len(distinct) <= categoricalMaxCardinality &&
		float64(len(distinct))/float64(nonEmpty) <= categoricalMaxRatio {
		return TypeCategorical
	}

	return TypeText
}

func hasDateHint(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range dateNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}

	return false
}
