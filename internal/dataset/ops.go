package dataset

import (
	"sort"
)

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts tallies the present values of column i, most frequent first.
// Ties keep first-appearance order.
func (t *Table) ValueCounts(i int) []ValueCount {
	idx := map[string]int{}
	var out []ValueCount
	for _, row := range t.Rows {
		v := row[i]
		if IsMissing(v) {
			continue
		}
		if j, ok := idx[v]; ok {
			out[j].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out
}

// Unique returns the number of distinct present values in column i.
func (t *Table) Unique(i int) int {
	seen := map[string]struct{}{}
	for _, row := range t.Rows {
		if !IsMissing(row[i]) {
			seen[row[i]] = struct{}{}
		}
	}
	return len(seen)
}

// SortByNumeric returns a new table ordered by the numeric value of column i.
// Missing or unparseable cells sort last regardless of direction.
func (t *Table) SortByNumeric(i int, descending bool) *Table {
	type keyed struct {
		row []string
		v   float64
		ok  bool
	}
	ks := make([]keyed, len(t.Rows))
	for r, row := range t.Rows {
		v, ok := 0.0, false
		if !IsMissing(row[i]) {
			v, ok = ParseFloat(row[i])
		}
		ks[r] = keyed{row: row, v: v, ok: ok}
	}
	sort.SliceStable(ks, func(a, b int) bool {
		if ks[a].ok != ks[b].ok {
			return ks[a].ok
		}
		if descending {
			return ks[a].v > ks[b].v
		}
		return ks[a].v < ks[b].v
	})
	rows := make([][]string, len(ks))
	for r, k := range ks {
		rows[r] = k.row
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: rows}
}

// GroupValue is the aggregate of one group.
type GroupValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// GroupMean averages the numeric column value within each distinct key of
// column group. Rows with a missing key or a missing value are ignored. Keys
// are ordered numerically when they all parse as numbers, else lexically.
func (t *Table) GroupMean(group, value int) []GroupValue {
	sums := map[string]*GroupValue{}
	for _, row := range t.Rows {
		k := row[group]
		if IsMissing(k) || IsMissing(row[value]) {
			continue
		}
		v, ok := ParseFloat(row[value])
		if !ok {
			continue
		}
		g, exists := sums[k]
		if !exists {
			g = &GroupValue{Key: k}
			sums[k] = g
		}
		g.Value += v
		g.Count++
	}
	out := make([]GroupValue, 0, len(sums))
	for _, g := range sums {
		g.Value /= float64(g.Count)
		out = append(out, *g)
	}
	SortKeys(out, func(g GroupValue) string { return g.Key })
	return out
}

// SortKeys orders items by a string key, numerically when every key parses
// as a number.
func SortKeys[T any](items []T, key func(T) string) {
	numeric := true
	for _, it := range items {
		if _, ok := ParseFloat(key(it)); !ok {
			numeric = false
			break
		}
	}
	sort.SliceStable(items, func(a, b int) bool {
		ka, kb := key(items[a]), key(items[b])
		if numeric {
			fa, _ := ParseFloat(ka)
			fb, _ := ParseFloat(kb)
			return fa < fb
		}
		return ka < kb
	})
}
