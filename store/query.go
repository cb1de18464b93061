package store

import (
	"sort"
	"strings"

	"github.com/acksell/registers/entry"
)

// MatchKind selects how a Matcher compares values.
type MatchKind int

const (
	// MatchExact requires the value to equal the operand.
	MatchExact MatchKind = iota
	// MatchContains requires the value to contain the operand, ignoring case.
	MatchContains
)

// Matcher is a condition on a single field.
type Matcher struct {
	Kind  MatchKind
	Value string
}

// Exact matches values equal to v.
func Exact(v string) Matcher {
	return Matcher{Kind: MatchExact, Value: v}
}

// Contains matches values containing v, case-insensitively.
func Contains(v string) Matcher {
	return Matcher{Kind: MatchContains, Value: v}
}

func (m Matcher) matchString(s string) bool {
	switch m.Kind {
	case MatchContains:
		return strings.Contains(strings.ToLower(s), strings.ToLower(m.Value))
	default:
		return s == m.Value
	}
}

// Matches reports whether v satisfies m. A list matches when any element does.
func (m Matcher) Matches(v entry.Value) bool {
	for _, s := range v.Strings() {
		if m.matchString(s) {
			return true
		}
	}
	return false
}

// Query selects entries. All conditions in Match must hold; an empty query
// selects everything.
type Query struct {
	Match map[string]Matcher
	// OrderBy sorts results ascending by the text of this field. Empty keeps
	// the store's most-recent-first order.
	OrderBy string
}

// Where returns a copy of q with an additional condition.
func (q Query) Where(field string, m Matcher) Query {
	match := make(map[string]Matcher, len(q.Match)+1)
	for k, v := range q.Match {
		match[k] = v
	}
	match[field] = m
	q.Match = match
	return q
}

// Matches reports whether fields satisfy every condition of q.
func (q Query) Matches(fields entry.Fields) bool {
	for name, m := range q.Match {
		v, ok := fields[name]
		if !ok || !m.Matches(v) {
			return false
		}
	}
	return true
}

// Order applies q.OrderBy to entries that are already most-recent-first.
// The sort is stable, so recency breaks ties. Entries lacking the field sort
// last.
func (q Query) Order(entries []entry.Entry) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, aok := entries[i].Fields[q.OrderBy]
		b, bok := entries[j].Fields[q.OrderBy]
		if aok != bok {
			return aok
		}
		return a.String() < b.String()
	})
}
