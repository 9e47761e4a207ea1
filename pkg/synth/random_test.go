package synth

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func render(t *testing.T, seed uint64, shape Shape) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := NewRandom(seed, shape).WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}
	return buf.String()
}

func TestRandomDeterministic(t *testing.T) {
	a := render(t, 42, SmallShape())
	b := render(t, 42, SmallShape())
	if a != b {
		t.Error("same seed produced different documents")
	}

	c := render(t, 43, SmallShape())
	if a == c {
		t.Error("different seeds produced identical documents")
	}
}

func TestRandomStreamMatchesTree(t *testing.T) {
	for _, seed := range []uint64{0, 1, 7, 1 << 40} {
		streamed := render(t, seed, SmallShape())
		tree := NewRandom(seed, SmallShape()).Object().String()
		if streamed != tree {
			t.Errorf("seed %d: streamed document differs from tree rendering", seed)
		}
	}
}

func TestRandomDocumentShape(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		doc := render(t, seed, SmallShape())

		if !strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n") {
			t.Fatalf("seed %d: document does not start with BEGIN:VCALENDAR", seed)
		}
		if !strings.HasSuffix(doc, "END:VCALENDAR\r\n") {
			t.Fatalf("seed %d: document does not end with END:VCALENDAR", seed)
		}

		lines := strings.Split(strings.TrimSuffix(doc, "\r\n"), "\r\n")
		for _, l := range lines {
			if len(l) > MaxLineOctets {
				t.Fatalf("seed %d: physical line of %d octets", seed, len(l))
			}
			if strings.ContainsAny(l, "\r\n") {
				t.Fatalf("seed %d: bare line break inside %q", seed, l)
			}
		}
	}
}

func TestRandomNeverNamesPropertyBegin(t *testing.T) {
	// fixed-length names that could spell BEGIN in any case
	shape := Shape{
		Properties:  Range{50, 51},
		NameLength:  Range{5, 6},
		ValueLength: Range{1, 2},
	}
	o := NewRandom(3, shape).Object()
	for _, p := range o.Properties {
		if strings.EqualFold(p.Name, "BEGIN") {
			t.Fatalf("property named %q generated", p.Name)
		}
	}
	if len(o.Children) != 0 {
		t.Errorf("children = %d, want 0 without a Children range", len(o.Children))
	}
}

func TestRangeSample(t *testing.T) {
	g := NewRandom(9, Shape{})
	tests := map[string]struct {
		r      Range
		lo, hi int
	}{
		"half open":  {r: Range{0, 10}, lo: 0, hi: 9},
		"single":     {r: Range{4, 5}, lo: 4, hi: 4},
		"empty":      {r: Range{3, 3}, lo: 3, hi: 3},
		"degenerate": {r: Range{5, 1}, lo: 5, hi: 5},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				v := tc.r.sample(g.rng)
				if v < tc.lo || v > tc.hi {
					t.Fatalf("sample() = %d, want within [%d, %d]", v, tc.lo, tc.hi)
				}
			}
		})
	}
}

func TestShapeByName(t *testing.T) {
	tests := map[string]struct {
		name    string
		want    Shape
		wantErr bool
	}{
		"empty is default": {name: "", want: DefaultShape()},
		"default":          {name: "default", want: DefaultShape()},
		"small":            {name: "small", want: SmallShape()},
		"unknown":          {name: "huge", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ShapeByName(tc.name)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ShapeByName(%q) = %+v, want %+v", tc.name, got, tc.want)
			}
		})
	}
}
