package geometry

import "testing"

func TestRectIntIntersect(t *testing.T) {
	cases := []struct {
		name string
		a, b RectInt
		want RectInt
	}{
		{"identical", NewRectInt(0, 0, 10, 10), NewRectInt(0, 0, 10, 10), NewRectInt(0, 0, 10, 10)},
		{"overlap", NewRectInt(0, 0, 10, 10), NewRectInt(5, 5, 10, 10), NewRectInt(5, 5, 5, 5)},
		{"contained", NewRectInt(0, 0, 10, 10), NewRectInt(2, 3, 4, 5), NewRectInt(2, 3, 4, 5)},
		{"disjoint", NewRectInt(0, 0, 5, 5), NewRectInt(10, 10, 5, 5), RectInt{}},
		{"touching edges", NewRectInt(0, 0, 5, 5), NewRectInt(5, 0, 5, 5), RectInt{}},
	}

	for _, tc := range cases {
		got := tc.a.Intersect(tc.b)
		if !got.Empty() && got != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
		if got.Empty() != tc.want.Empty() {
			t.Errorf("%s: emptiness mismatch, got %+v", tc.name, got)
		}
	}
}

func TestRectRound(t *testing.T) {
	r := NewRect(1.4, 2.6, 9.5, 10.49).Round()
	want := NewRectInt(1, 3, 10, 10)
	if r != want {
		t.Errorf("Round: got %+v, want %+v", r, want)
	}
}

func TestRectScale(t *testing.T) {
	r := NewRect(2, 4, 8, 16).Scale(0.5)
	if r != NewRect(1, 2, 4, 8) {
		t.Errorf("Scale: got %+v", r)
	}
}

func TestPolygonBoundingBox(t *testing.T) {
	poly := Polygon{{X: 3, Y: 10}, {X: -2, Y: 4}, {X: 7, Y: 6}}
	box := poly.BoundingBox()
	if box != NewRect(-2, 4, 9, 6) {
		t.Errorf("BoundingBox: got %+v", box)
	}

	if empty := (Polygon{}).BoundingBox(); !NewRectInt(0, 0, 0, 0).Empty() || empty != (Rect{}) {
		t.Errorf("empty polygon box: got %+v", empty)
	}
}

func TestSizeMean(t *testing.T) {
	if got := NewSize(100, 200).Mean(); got != 150 {
		t.Errorf("Mean: got %v", got)
	}
}
