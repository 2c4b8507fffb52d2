package observable

import "sort"

// Priority orders the buckets of an event. Buckets are visited in ascending
// lexicographic order of their priority, except DefaultPriority, which is
// always visited last.
type Priority string

// DefaultPriority is used when no priority is given.
const DefaultPriority Priority = "z"

// orDefault maps the empty priority to DefaultPriority.
func (p Priority) orDefault() Priority {
	if p == "" {
		return DefaultPriority
	}
	return p
}

// less reports whether bucket p is visited before bucket q.
func (p Priority) less(q Priority) bool {
	if p == DefaultPriority {
		return false
	}
	if q == DefaultPriority {
		return true
	}
	return p < q
}

// sortPriorities orders priorities in bucket visiting order.
func sortPriorities(ps []Priority) {
	sort.Slice(ps, func(i, j int) bool {
		return ps[i].less(ps[j])
	})
}
