package models

import (
	"testing"
)

func folder(name string) *Node {
	return &Node{ID: name, Name: name, Kind: KindFolder, Path: "/" + name}
}

func leaf(name string, size int64) *Node {
	return &Node{ID: name, Name: name, Kind: KindLeaf, Path: "/" + name, Size: size}
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func assertOrder(t *testing.T, got []*Node, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", names(got), want)
	}
	for i, n := range got {
		if n.Name != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, names(got), want)
		}
	}
}

func TestSortNodesFoldersFirst(t *testing.T) {
	// Leaf names sort before every folder name alphabetically; folders must
	// still come out on top.
	nodes := []*Node{
		leaf("aardvark.jpg", 10),
		folder("zebra"),
		leaf("beetle.png", 20),
		folder("yak"),
	}

	sorted := SortNodes(nodes, SortByName, OrderAsc)
	assertOrder(t, sorted, []string{"yak", "zebra", "aardvark.jpg", "beetle.png"})
}

func TestSortNodesByNameDesc(t *testing.T) {
	nodes := []*Node{
		folder("Apples"),
		folder("cherries"),
		folder("Bananas"),
		leaf("one.jpg", 1),
		leaf("two.jpg", 2),
	}

	sorted := SortNodes(nodes, SortByName, OrderDesc)
	assertOrder(t, sorted, []string{"cherries", "Bananas", "Apples", "two.jpg", "one.jpg"})
}

func TestSortNodesCaseInsensitive(t *testing.T) {
	nodes := []*Node{
		folder("banana"),
		folder("Apple"),
		folder("CHERRY"),
	}

	sorted := SortNodes(nodes, SortByName, OrderAsc)
	assertOrder(t, sorted, []string{"Apple", "banana", "CHERRY"})
}

func TestSortNodesBySize(t *testing.T) {
	nodes := []*Node{
		leaf("big.jpg", 3000),
		leaf("small.jpg", 10),
		leaf("mid.jpg", 500),
	}

	sorted := SortNodes(nodes, SortBySize, OrderAsc)
	assertOrder(t, sorted, []string{"small.jpg", "mid.jpg", "big.jpg"})

	sorted = SortNodes(nodes, SortBySize, OrderDesc)
	assertOrder(t, sorted, []string{"big.jpg", "mid.jpg", "small.jpg"})
}

func TestSortNodesDescKeepsEqualNamesStable(t *testing.T) {
	// "a.jpg" and "A.jpg" compare equal under the case-insensitive key, so
	// descending must keep their input order instead of flipping them.
	nodes := []*Node{
		leaf("a.jpg", 1),
		leaf("B.jpg", 2),
		leaf("A.jpg", 3),
	}

	sorted := SortNodes(nodes, SortByName, OrderDesc)
	assertOrder(t, sorted, []string{"B.jpg", "a.jpg", "A.jpg"})
}

func TestSortNodesSizeTieBreaksByName(t *testing.T) {
	nodes := []*Node{
		leaf("b.jpg", 100),
		leaf("a.jpg", 100),
		leaf("c.jpg", 100),
	}

	sorted := SortNodes(nodes, SortBySize, OrderAsc)
	assertOrder(t, sorted, []string{"a.jpg", "b.jpg", "c.jpg"})
}

func TestSortNodesUnknownKeyFallsBackToName(t *testing.T) {
	nodes := []*Node{
		leaf("zz.jpg", 1),
		leaf("aa.jpg", 2),
	}

	sorted := SortNodes(nodes, "mtime", "sideways")
	assertOrder(t, sorted, []string{"aa.jpg", "zz.jpg"})
}

func TestSortNodesDoesNotMutateInput(t *testing.T) {
	nodes := []*Node{
		leaf("z.jpg", 1),
		folder("a"),
	}

	SortNodes(nodes, SortByName, OrderAsc)
	if nodes[0].Name != "z.jpg" || nodes[1].Name != "a" {
		t.Fatalf("input slice reordered: %v", names(nodes))
	}
}
