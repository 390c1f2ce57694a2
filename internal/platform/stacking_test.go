package platform

import (
	"slices"
	"testing"
)

func TestStackTransients(t *testing.T) {
	a := WindowID{Client: 1, Seq: 1}
	b := WindowID{Client: 1, Seq: 2}
	c := WindowID{Client: 1, Seq: 3}
	d := WindowID{Client: 1, Seq: 4}
	outside := WindowID{Client: 2, Seq: 1}

	tests := []struct {
		name     string
		siblings []WindowID
		parents  map[WindowID]WindowID
		want     []WindowID
	}{
		{
			name:     "no transients keeps order",
			siblings: []WindowID{a, b, c},
			want:     []WindowID{a, b, c},
		},
		{
			name:     "transient child moves directly above parent",
			siblings: []WindowID{c, a, b},
			parents:  map[WindowID]WindowID{c: a},
			want:     []WindowID{a, c, b},
		},
		{
			name:     "transient grandchild follows its parent",
			siblings: []WindowID{d, c, a, b},
			parents:  map[WindowID]WindowID{c: a, d: c},
			want:     []WindowID{a, c, d, b},
		},
		{
			name:     "transient parent outside the group is ignored",
			siblings: []WindowID{b, a},
			parents:  map[WindowID]WindowID{a: outside},
			want:     []WindowID{b, a},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			children := map[WindowID][]WindowID{}
			for _, id := range []WindowID{a, b, c, d} {
				if p, ok := tt.parents[id]; ok {
					children[p] = append(children[p], id)
				}
			}
			got := StackTransients(tt.siblings,
				func(id WindowID) WindowID { return tt.parents[id] },
				func(id WindowID) []WindowID { return children[id] },
			)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStackRelative(t *testing.T) {
	a := WindowID{Client: 1, Seq: 1}
	b := WindowID{Client: 1, Seq: 2}
	c := WindowID{Client: 1, Seq: 3}
	missing := WindowID{Client: 9, Seq: 9}

	tests := []struct {
		name        string
		id          WindowID
		relative    WindowID
		direction   StackDirection
		want        []WindowID
		wantChanged bool
	}{
		{"above", a, c, StackAbove, []WindowID{b, c, a}, true},
		{"below", c, a, StackBelow, []WindowID{c, a, b}, true},
		{"already in place", b, a, StackAbove, []WindowID{a, b, c}, false},
		{"unknown relative", a, missing, StackAbove, []WindowID{a, b, c}, false},
		{"unknown id", missing, a, StackBelow, []WindowID{a, b, c}, false},
		{"self", a, a, StackAbove, []WindowID{a, b, c}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			siblings := []WindowID{a, b, c}
			got, changed := StackRelative(siblings, tt.id, tt.relative, tt.direction)
			if !slices.Equal(got, tt.want) || changed != tt.wantChanged {
				t.Fatalf("got %v (changed %v), want %v (changed %v)", got, changed, tt.want, tt.wantChanged)
			}
			if !slices.Equal(siblings, []WindowID{a, b, c}) {
				t.Fatalf("input modified: %v", siblings)
			}
		})
	}
}
