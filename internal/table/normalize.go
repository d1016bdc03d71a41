package table

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeHeaders cleans a raw header row into unique display names. Blank
// or whitespace-only headers become positional placeholders ("Column 3"), and
// names that collide case-insensitively after trimming get a numeric suffix
// ("Region", "region_2"). Uniqueness is enforced on the normalized lookup
// key as well, so "Total Sales" and "Total_Sales" never map to the same
// column, and a suffixed name never collides with a literal header.
func NormalizeHeaders(raw []string) []string {
	names := make([]string, len(raw))
	seenNames := make(map[string]bool, len(raw))
	seenKeys := make(map[string]bool, len(raw))

	for i, h := range raw {
		base := strings.TrimSpace(h)
		if base == "" {
			base = fmt.Sprintf("Column %d", i+1)
		}

		name := base
		for n := 2; seenNames[strings.ToLower(name)] || seenKeys[NormalizeKey(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}

		seenNames[strings.ToLower(name)] = true
		seenKeys[NormalizeKey(name)] = true
		names[i] = name
	}

	return names
}

// NormalizeKey converts a display name into a stable identifier: lowercase,
// non-alphanumeric runs collapsed to single underscores, trimmed at the ends.
func NormalizeKey(name string) string {
	var b strings.Builder

	lastUnderscore := false

	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

// RepairColumnName matches a name produced by the planner against the actual
// schema, tolerating case differences and punctuation drift. It returns the
// canonical display name. The chain runs from strictest to loosest: exact,
// case-insensitive, normalized-key, then unique containment of the normalized
// key. Ambiguous containment is treated as no match.
func RepairColumnName(name string, columns []Column) (string, bool) {
	for _, c := range columns {
		if c.Name == name {
			return c.Name, true
		}
	}

	for _, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}

	key := NormalizeKey(name)
	if key == "" {
		return "", false
	}

	for _, c := range columns {
		if c.Key == key {
			return c.Name, true
		}
	}

	var hits []string

	for _, c := range columns {
		if strings.Contains(c.Key, key) || strings.Contains(key, c.Key) {
			hits = append(hits, c.Name)
		}
	}

	if len(hits) == 1 {
		return hits[0], true
	}

	return "", false
}
