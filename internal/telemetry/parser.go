package telemetry

import (
	"strconv"
	"strings"
)

// Annotated CSV layout produced by the store's latest-snapshot query.
const (
	headerPrefix = ",result,table,"
	dataPrefix   = ",_result,"

	// firstFieldColumn is the index of the first telemetry column; the
	// columns before it are the annotation, result, table, _start, _stop,
	// _time, _measurement and series tag.
	firstFieldColumn = 8

	// noneLiteral is written by some exporters for missing values.
	noneLiteral = "None"
)

// ParseCSV converts an annotated CSV response into a RawFieldMap.
//
// Annotation (#) and blank lines are skipped. A header line replaces the
// current list of field names; each data line that follows is paired with
// those names positionally, starting at column 8. Cells are trimmed of
// surrounding whitespace. Values are stored as
// int64, float64 (when they contain a '.') or, if neither parses, as the
// raw string. Empty and "None" values are dropped. When a name repeats,
// the last value wins.
//
// Malformed input never fails: a payload without usable data lines yields
// an empty map, and data lines seen before any header are ignored.
func ParseCSV(text string) RawFieldMap {
	out := make(RawFieldMap)
	var names []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, headerPrefix):
			names = headerNames(strings.Split(line, ","))

		case strings.HasPrefix(line, dataPrefix):
			if len(names) == 0 {
				continue
			}
			cols := strings.Split(line, ",")
			if len(cols) <= firstFieldColumn {
				continue
			}
			for i, raw := range cols[firstFieldColumn:] {
				if i >= len(names) {
					break
				}
				raw = strings.TrimSpace(raw)
				if raw == "" || raw == noneLiteral {
					continue
				}
				out[names[i]] = coerce(raw)
			}
		}
	}

	return out
}

func headerNames(cols []string) []string {
	if len(cols) <= firstFieldColumn {
		return nil
	}
	names := make([]string, 0, len(cols)-firstFieldColumn)
	for _, name := range cols[firstFieldColumn:] {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// coerce converts a CSV cell to int64 or float64, falling back to the string.
func coerce(raw string) any {
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
