package regalloc

import "testing"

func TestLiveRangeIntersects(t *testing.T) {
	tests := []struct {
		name string
		a, b LiveRange
		want bool
	}{
		{"disjoint", LiveRange{0, 4}, LiveRange{4, 8}, false},
		{"overlapping", LiveRange{0, 6}, LiveRange{4, 8}, true},
		{"contained", LiveRange{0, 10}, LiveRange{2, 4}, true},
		{"reversed-args", LiveRange{4, 8}, LiveRange{0, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.intersects(tt.b); got != tt.want {
				t.Errorf("intersects(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLiveIntervalCoversPosition(t *testing.T) {
	li := &LiveInterval{Ranges: []LiveRange{{0, 4}, {8, 12}}}

	tests := []struct {
		pos  int
		want bool
	}{
		{0, true},
		{3, true},
		{4, false}, // exclusive end
		{6, false}, // lifetime hole
		{8, true},
		{11, true},
		{12, false},
	}
	for _, tt := range tests {
		if got := li.CoversPosition(tt.pos); got != tt.want {
			t.Errorf("CoversPosition(%d) = %v, want %v", tt.pos, got, tt.want)
		}
	}
}

func TestLiveIntervalIntersects(t *testing.T) {
	a := &LiveInterval{Ranges: []LiveRange{{0, 4}, {10, 14}}}
	b := &LiveInterval{Ranges: []LiveRange{{4, 10}}}
	c := &LiveInterval{Ranges: []LiveRange{{2, 11}}}

	if a.Intersects(b) {
		t.Error("a and b share only touching endpoints, should not intersect")
	}
	if !a.Intersects(c) {
		t.Error("a and c overlap in [2,4), should intersect")
	}
}

func TestArenaSplit(t *testing.T) {
	arena := newIntervalArena()
	v := &Value{ID: 1, Name: "v1", NeedsRegister: true}
	root := arena.intervalFor(v)
	root.addRange(0, 20)
	root.addUse(LiveIntervalsUse{Pos: 0, IsDef: true, Limit: Width16Bit})
	root.addUse(LiveIntervalsUse{Pos: 10, Limit: Width16Bit})
	root.addUse(LiveIntervalsUse{Pos: 18, Limit: Width16Bit})

	child := arena.split(root, 12)

	if root.To() != 12 {
		t.Errorf("root.To() = %d, want 12", root.To())
	}
	if child.From() != 12 || child.To() != 20 {
		t.Errorf("child range = [%d,%d), want [12,20)", child.From(), child.To())
	}
	if len(root.Uses) != 2 {
		t.Errorf("root kept %d uses, want 2 (pos 0 and 10)", len(root.Uses))
	}
	if len(child.Uses) != 1 {
		t.Errorf("child kept %d uses, want 1 (pos 18)", len(child.Uses))
	}
	if got := arena.root(child); got != root {
		t.Error("arena.root(child) should walk back to root")
	}
	if len(root.SplitChildren) != 1 || root.SplitChildren[0] != child.ID {
		t.Error("root.SplitChildren should record the new child's ID")
	}
}

func TestChildCovering(t *testing.T) {
	arena := newIntervalArena()
	v := &Value{ID: 2, Name: "v2", NeedsRegister: true}
	root := arena.intervalFor(v)
	root.addRange(0, 20)
	child := arena.split(root, 10)

	if seg, ok := arena.childCovering(root, 5); !ok || seg != root {
		t.Error("position 5 should be covered by root")
	}
	if seg, ok := arena.childCovering(root, 15); !ok || seg != child {
		t.Error("position 15 should be covered by the split child")
	}
	if _, ok := arena.childCovering(root, 25); ok {
		t.Error("position 25 is past the end of the chain, should not be covered")
	}
}
