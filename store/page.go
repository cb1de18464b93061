package store

import (
	"github.com/acksell/registers/entry"
	"golang.org/x/exp/constraints"
)

// Window returns the [start, end) slice bounds of a 1-indexed page over total
// items. Pages past the end yield an empty window at total.
func Window[T constraints.Integer](total, page, pageSize T) (start, end T, err error) {
	if page < 1 || pageSize < 1 {
		return 0, 0, ErrInvalidPage
	}
	start = (page - 1) * pageSize
	if start > total || start < 0 {
		return total, total, nil
	}
	end = start + pageSize
	if end > total || end < start {
		end = total
	}
	return start, end, nil
}

// Paginate filters, orders and slices a most-recent-first stream of entries.
// Backends that cannot push the query down to storage use it directly.
func Paginate(all []entry.Entry, q Query, page, pageSize int) (Meta, []entry.Entry, error) {
	if page < 1 || pageSize < 1 {
		return Meta{}, nil, ErrInvalidPage
	}
	matched := make([]entry.Entry, 0, len(all))
	for _, e := range all {
		if q.Matches(e.Fields) {
			matched = append(matched, e)
		}
	}
	q.Order(matched)
	start, end, err := Window(len(matched), page, pageSize)
	if err != nil {
		return Meta{}, nil, err
	}
	meta := Meta{Total: len(matched), Page: page, PageSize: pageSize}
	return meta, matched[start:end], nil
}
