// Package recordset holds the deduplicating, order-preserving accumulator
// that extraction results are merged into.
package recordset

import "time"

// Record is one saved bookmark. Identity is Id alone, pagination will
// re-surface the same bookmark with slightly different metadata and the
// first-seen instance wins.
type Record struct {
	Id     string    `json:"id"`
	Text   string    `json:"text"`
	Author string    `json:"author,omitempty"`
	Link   string    `json:"link,omitempty"`
	Date   time.Time `json:"date,omitempty"`
}

// Set is keyed by Record.Id and remembers first-seen insertion order so
// exports come out deterministic. The zero value is not usable, construct
// with New.
type Set struct {
	byId  map[string]Record
	order []string
}

func New(records ...Record) Set {
	s := Set{byId: make(map[string]Record, len(records))}
	for _, r := range records {
		if _, seen := s.byId[r.Id]; seen {
			continue
		}
		s.byId[r.Id] = r
		s.order = append(s.order, r.Id)
	}
	return s
}

func (s Set) Size() int {
	return len(s.order)
}

func (s Set) Has(id string) bool {
	_, ok := s.byId[id]
	return ok
}

func (s Set) Get(id string) (Record, bool) {
	r, ok := s.byId[id]
	return r, ok
}

// Values returns records in first-seen order.
func (s Set) Values() []Record {
	out := make([]Record, len(s.order))
	for i, id := range s.order {
		out[i] = s.byId[id]
	}
	return out
}

// Capped returns records in first-seen order, hard-truncated to limit.
// limit <= 0 means no cap.
func (s Set) Capped(limit int) []Record {
	values := s.Values()
	if limit > 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}

// Union merges b into a and returns a new Set, leaving both inputs
// untouched. Merging an id twice keeps the instance (and position) that
// was seen first, so Union is idempotent on identifiers.
func Union(a, b Set) Set {
	merged := Set{
		byId:  make(map[string]Record, len(a.order)+len(b.order)),
		order: make([]string, len(a.order), len(a.order)+len(b.order)),
	}
	copy(merged.order, a.order)
	for id, r := range a.byId {
		merged.byId[id] = r
	}
	for _, id := range b.order {
		if _, seen := merged.byId[id]; seen {
			continue
		}
		merged.byId[id] = b.byId[id]
		merged.order = append(merged.order, id)
	}
	return merged
}
