package models

import "sort"

// IDSet is an unordered set of entity ids.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether the set changed. The receiver must be
// non-nil.
func (s IDSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether the set changed.
func (s IDSet) Remove(id string) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

func (s IDSet) Len() int {
	return len(s)
}

func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns the ids present in both sets.
func (s IDSet) Intersect(other IDSet) []string {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	var out []string
	for id := range small {
		if large.Has(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Slice returns the members in sorted order so that persisted documents
// and JSON bodies are stable.
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
