package platform

import "slices"

// StackTransients reorders siblings (back to front) so that every window's
// transient children that share the same parent sit directly above it, in
// transient order. Windows that are not transient children of a sibling keep
// their relative order. transientParent and transientChildren describe the
// transient relationships of each id.
func StackTransients(siblings []WindowID, transientParent func(WindowID) WindowID, transientChildren func(WindowID) []WindowID) []WindowID {
	inGroup := make(map[WindowID]bool, len(siblings))
	for _, id := range siblings {
		inGroup[id] = true
	}

	placed := make(map[WindowID]bool, len(siblings))
	out := make([]WindowID, 0, len(siblings))
	var place func(id WindowID)
	place = func(id WindowID) {
		if placed[id] {
			return
		}
		placed[id] = true
		out = append(out, id)
		for _, child := range transientChildren(id) {
			if inGroup[child] {
				place(child)
			}
		}
	}

	for _, id := range siblings {
		if tp := transientParent(id); !tp.IsZero() && inGroup[tp] {
			continue
		}
		place(id)
	}
	// Transient cycles are rejected upstream; anything still unplaced keeps
	// its original order at the top.
	for _, id := range siblings {
		place(id)
	}
	return out
}

// StackRelative returns siblings with id moved directly above or below
// relative, and whether the order changed. siblings is not modified.
func StackRelative(siblings []WindowID, id, relative WindowID, direction StackDirection) ([]WindowID, bool) {
	out := make([]WindowID, 0, len(siblings))
	for _, s := range siblings {
		if s != id {
			out = append(out, s)
		}
	}
	i := slices.Index(out, relative)
	if i < 0 || len(out) == len(siblings) {
		return siblings, false
	}
	if direction == StackAbove {
		i++
	}
	out = slices.Insert(out, i, id)
	return out, !slices.Equal(out, siblings)
}
