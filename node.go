package psd

import "strings"

// Children returns the indices, in top-to-bottom order, of the layers
// directly nested under parentIndex (-1 for the document root).
// Grounded on the teacher's Node.Children field, generalized from a
// *Node pointer tree to indices into a flat []*LayerRecord arena (spec
// §3, §9 Design Notes: "parent is recorded as ... index ... not a
// back-pointer").
func Children(layers []*LayerRecord, parentIndex int) []int {
	var out []int
	for i, l := range layers {
		if l.ParentIndex == parentIndex && !l.IsGroupEnd() {
			out = append(out, i)
		}
	}
	return out
}

// Descendants returns the indices of every layer transitively nested
// under index (not including index itself).
func Descendants(layers []*LayerRecord, index int) []int {
	var out []int
	for _, child := range Children(layers, index) {
		out = append(out, child)
		if layers[child].IsGroupDivider() && !layers[child].IsGroupEnd() {
			out = append(out, Descendants(layers, child)...)
		}
	}
	return out
}

// Depth returns how many enclosing groups contain the layer at index
// (0 for a top-level layer).
func Depth(layers []*LayerRecord, index int) int {
	depth := 0
	for i := layers[index].ParentIndex; i != -1; i = layers[i].ParentIndex {
		depth++
	}
	return depth
}

// GroupPath returns the slash-joined chain of enclosing group names for
// the layer at index, root-first (e.g. "Characters/Hero").
func GroupPath(layers []*LayerRecord, index int) string {
	var parts []string
	for i := layers[index].ParentIndex; i != -1; i = layers[i].ParentIndex {
		parts = append([]string{layers[i].Name}, parts...)
	}
	return strings.Join(parts, "/")
}

// ChildrenAtPath resolves a slash-separated group path (relative to the
// document root) to the indices of the layers and sub-groups nested
// directly under it.
func ChildrenAtPath(layers []*LayerRecord, path string) []int {
	path = strings.TrimPrefix(path, "/")
	parent := -1

	if path != "" {
		for _, part := range strings.Split(path, "/") {
			found := -1
			for _, idx := range Children(layers, parent) {
				if layers[idx].Name == part && layers[idx].IsGroupDivider() {
					found = idx
					break
				}
			}
			if found == -1 {
				return nil
			}
			parent = found
		}
	}

	return Children(layers, parent)
}
