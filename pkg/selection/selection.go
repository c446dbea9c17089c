// Package selection implements the multi-select state machine clients run
// over a displayed listing. It is pure bookkeeping: clicks rewrite the
// selected-id set and nothing here ever touches the namespace. The ids it
// yields feed the batch move and delete endpoints.
package selection

import "sort"

// Selection tracks the selected ids and the range anchor. The zero value
// is not usable; call New.
type Selection struct {
	ids    map[string]struct{}
	anchor string
}

// New returns an empty selection.
func New() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Click replaces the selection with the clicked item and anchors there.
func (s *Selection) Click(id string) {
	s.ids = map[string]struct{}{id: {}}
	s.anchor = id
}

// Toggle flips the clicked item in or out of the selection and anchors
// there.
func (s *Selection) Toggle(id string) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	s.anchor = id
}

// Range replaces the selection with the contiguous run between the anchor
// and the clicked item, inclusive, in displayed order. The direction of
// the click does not matter and the anchor stays put, so successive range
// clicks pivot around it. Without a usable anchor it degrades to Click.
func (s *Selection) Range(order []string, id string) {
	ai := indexOf(order, s.anchor)
	ci := indexOf(order, id)
	if ai < 0 || ci < 0 {
		s.Click(id)
		return
	}
	lo, hi := ai, ci
	if lo > hi {
		lo, hi = hi, lo
	}
	s.ids = make(map[string]struct{}, hi-lo+1)
	for _, item := range order[lo : hi+1] {
		s.ids[item] = struct{}{}
	}
}

// SelectAll selects every displayed item. The anchor is unchanged.
func (s *Selection) SelectAll(order []string) {
	s.ids = make(map[string]struct{}, len(order))
	for _, id := range order {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the selection and drops the anchor.
func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
	s.anchor = ""
}

// Prune drops selected ids that are no longer displayed, for callers that
// keep a selection alive across listing refreshes. A vanished anchor is
// dropped too.
func (s *Selection) Prune(order []string) {
	displayed := make(map[string]struct{}, len(order))
	for _, id := range order {
		displayed[id] = struct{}{}
	}
	for id := range s.ids {
		if _, ok := displayed[id]; !ok {
			delete(s.ids, id)
		}
	}
	if _, ok := displayed[s.anchor]; !ok {
		s.anchor = ""
	}
}

// IsSelected reports whether id is in the selection.
func (s *Selection) IsSelected(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected items.
func (s *Selection) Len() int {
	return len(s.ids)
}

// Anchor returns the current range anchor, or "" when unset.
func (s *Selection) Anchor() string {
	return s.anchor
}

// IDs returns the selected ids, sorted for determinism.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func indexOf(order []string, id string) int {
	if id == "" {
		return -1
	}
	for i, item := range order {
		if item == id {
			return i
		}
	}
	return -1
}
