package models

import (
	"sort"
	"strings"
)

// Sort keys and orders accepted by SortNodes. Unknown values fall back to
// SortByName / OrderAsc.
const (
	SortByName = "name"
	SortBySize = "size"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SortNodes orders a listing for presentation: folders always come first,
// then leaves, each group sorted by the requested key. The result is
// view-layer state only; it is never written back into the tree.
func SortNodes(nodes []*Node, sortBy, order string) []*Node {
	var folders, leaves []*Node
	for _, n := range nodes {
		if n.IsFolder() {
			folders = append(folders, n)
		} else {
			leaves = append(leaves, n)
		}
	}

	sortGroup := func(items []*Node) {
		sort.SliceStable(items, func(i, j int) bool {
			// Descending swaps the operands rather than negating the result,
			// so equal keys stay equal and the stable order holds.
			a, b := items[i], items[j]
			if order == OrderDesc {
				a, b = b, a
			}
			switch sortBy {
			case SortBySize:
				if a.Size != b.Size {
					return a.Size < b.Size
				}
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			default:
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
		})
	}

	sortGroup(folders)
	sortGroup(leaves)

	return append(folders, leaves...)
}
