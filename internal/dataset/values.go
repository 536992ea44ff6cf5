package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred category of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindDatetime    Kind = "datetime"
)

var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "<NA>": {}, "NaN": {}, "nan": {},
	"-NaN": {}, "-nan": {}, "null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#NA": {},
}

// IsMissing reports whether a raw cell counts as a missing value.
func IsMissing(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// ParseFloat parses a numeric cell. Infinities are rejected so that every
// accepted value supports arithmetic.
func ParseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006/01/02", "2006-01",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"01/02/2006", "1/2/2006", "02-01-2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "02-Jan-2006",
	"01-02-06", "1/2/06", "1/2/06 15:04", "02-Jan-06",
}

// ParseTime tries the supported timestamp layouts in order.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LooksTemporal reports whether a column name suggests dates or times.
func LooksTemporal(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "date") || strings.Contains(n, "time")
}

// InferKind classifies a column. Numeric wins when every present value parses
// as a number; datetime needs a temporal name and every present value to parse
// as a timestamp; everything else, including an all-missing column, is
// categorical.
func InferKind(name string, cells []string) Kind {
	present := 0
	numeric, temporal := true, LooksTemporal(name)
	for _, c := range cells {
		if IsMissing(c) {
			continue
		}
		present++
		if numeric {
			if _, ok := ParseFloat(c); !ok {
				numeric = false
			}
		}
		if temporal {
			if _, ok := ParseTime(c); !ok {
				temporal = false
			}
		}
		if !numeric && !temporal {
			break
		}
	}
	switch {
	case present == 0:
		return KindCategorical
	case numeric:
		return KindNumeric
	case temporal:
		return KindDatetime
	default:
		return KindCategorical
	}
}

// Kinds infers the kind of every column in order.
func (t *Table) Kinds() []Kind {
	out := make([]Kind, len(t.Columns))
	for i, name := range t.Columns {
		out[i] = InferKind(name, t.Column(i))
	}
	return out
}

// FormatFloat renders a number the way cells are written back after cleaning.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
