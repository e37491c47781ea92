package store

import (
	"cmp"
	"slices"
	"time"
)

// SortDocuments orders docs by the given field. Documents with equal values
// keep arrival order in the requested direction.
func SortDocuments(docs []Document, field string, dir Direction) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		c := compareValues(a.Data[field], b.Data[field])
		if c == 0 {
			c = cmp.Compare(a.Seq, b.Seq)
		}
		if dir == Descending {
			return -c
		}
		return c
	})
}

// compareValues orders missing values first, then numbers, strings and times
// by their natural order. Strings holding RFC 3339 times compare as times.
func compareValues(a, b any) int {
	ta, aTime := asTime(a)
	tb, bTime := asTime(b)
	if aTime && bTime {
		return ta.Compare(tb)
	}

	na, aNum := asNumber(a)
	nb, bNum := asNumber(b)
	if aNum && bNum {
		return cmp.Compare(na, nb)
	}

	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return cmp.Compare(sa, sb)
	}

	return cmp.Compare(rank(a), rank(b))
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := asNumber(v); ok {
		return 1
	}
	if _, ok := asTime(v); ok {
		return 3
	}
	if _, ok := v.(string); ok {
		return 2
	}
	return 4
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sort applies the query order. Without an order field documents come back in
// arrival order.
func (q Query) sort(docs []Document) {
	if q.OrderBy == "" {
		SortDocuments(docs, "", Ascending)
		return
	}
	SortDocuments(docs, q.OrderBy, q.Direction)
}
