package selection

import (
	"reflect"
	"testing"
)

func ids(s *Selection) []string { return s.IDs() }

func TestClickReplacesSelection(t *testing.T) {
	s := New()
	s.Click("a")
	s.Click("b")

	if got := ids(s); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("selection = %v, want [b]", got)
	}
	if s.Anchor() != "b" {
		t.Errorf("anchor = %q, want b", s.Anchor())
	}
}

func TestToggle(t *testing.T) {
	s := New()
	s.Click("a")
	s.Toggle("b")

	if got := ids(s); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("after add: selection = %v, want [a b]", got)
	}
	if s.Anchor() != "b" {
		t.Errorf("anchor = %q, want b", s.Anchor())
	}

	s.Toggle("a")
	if got := ids(s); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("after remove: selection = %v, want [b]", got)
	}
	if s.Anchor() != "a" {
		t.Errorf("anchor follows the toggled item, got %q", s.Anchor())
	}
}

func TestRangePivotsAroundAnchor(t *testing.T) {
	order := []string{"a", "b", "c", "d"}
	s := New()

	s.Click("b")
	s.Range(order, "d")
	if got := ids(s); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Fatalf("range down: selection = %v, want [b c d]", got)
	}

	// Same anchor, opposite direction: the selection pivots, it does not
	// accumulate.
	s.Range(order, "a")
	if got := ids(s); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("range up: selection = %v, want [a b]", got)
	}
	if s.Anchor() != "b" {
		t.Errorf("anchor = %q, want b", s.Anchor())
	}
}

func TestRangeWithoutAnchorActsAsClick(t *testing.T) {
	order := []string{"a", "b", "c"}
	s := New()

	s.Range(order, "c")
	if got := ids(s); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("selection = %v, want [c]", got)
	}
	if s.Anchor() != "c" {
		t.Errorf("anchor = %q, want c", s.Anchor())
	}
}

func TestRangeWithVanishedAnchorActsAsClick(t *testing.T) {
	s := New()
	s.Click("gone")

	order := []string{"a", "b", "c"}
	s.Range(order, "b")
	if got := ids(s); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("selection = %v, want [b]", got)
	}
}

func TestSelectAllAndClear(t *testing.T) {
	order := []string{"a", "b", "c"}
	s := New()
	s.Click("b")

	s.SelectAll(order)
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
	if s.Anchor() != "b" {
		t.Errorf("select-all should keep the anchor, got %q", s.Anchor())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after clear = %d, want 0", s.Len())
	}
	if s.Anchor() != "" {
		t.Errorf("anchor after clear = %q, want empty", s.Anchor())
	}
}

func TestPrune(t *testing.T) {
	s := New()
	s.Click("a")
	s.Toggle("b")
	s.Toggle("c")

	s.Prune([]string{"a", "c"})
	if got := ids(s); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("selection = %v, want [a c]", got)
	}
	// The anchor was "c" (last toggle) and survives; prune away its row
	// and it resets.
	s.Prune([]string{"a"})
	if s.Anchor() != "" {
		t.Errorf("anchor = %q, want empty after its row vanished", s.Anchor())
	}
}

func TestIsSelected(t *testing.T) {
	s := New()
	s.Click("x")
	if !s.IsSelected("x") {
		t.Error("x should be selected")
	}
	if s.IsSelected("y") {
		t.Error("y should not be selected")
	}
}
