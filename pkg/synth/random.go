package synth

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
)

const (
	nameAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-"
	valueAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	rootType = "VCALENDAR"
)

// Range is a half-open interval [Min, Max). An empty range always yields Min.
type Range struct {
	Min int
	Max int
}

func (r Range) sample(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.IntN(r.Max-r.Min)
}

// Shape bounds the random document.
type Shape struct {
	Properties  Range
	Params      Range
	ParamValues Range
	NameLength  Range
	ValueLength Range
	// Children[d] is the number of nested objects per object at depth d.
	// Objects at depth len(Children) have no children.
	Children []Range
}

// DefaultShape produces documents in the order of 100 MB.
func DefaultShape() Shape {
	return Shape{
		Properties:  Range{0, 10},
		Params:      Range{0, 10},
		ParamValues: Range{0, 50},
		NameLength:  Range{1, 200},
		ValueLength: Range{1, 200},
		Children:    []Range{{0, 1000}, {0, 10}},
	}
}

// SmallShape keeps documents to a few kilobytes.
func SmallShape() Shape {
	return Shape{
		Properties:  Range{0, 6},
		Params:      Range{0, 3},
		ParamValues: Range{0, 4},
		NameLength:  Range{1, 16},
		ValueLength: Range{1, 40},
		Children:    []Range{{0, 8}, {0, 3}},
	}
}

// ShapeByName resolves "default" (or "") and "small".
func ShapeByName(name string) (Shape, error) {
	switch name {
	case "", "default":
		return DefaultShape(), nil
	case "small":
		return SmallShape(), nil
	default:
		return Shape{}, fmt.Errorf("unknown shape %q: must be \"default\" or \"small\"", name)
	}
}

// Random generates one random calendar object tree. The root is always a
// VCALENDAR; every other name is random and may collide with real component
// or property names, except that no property is ever named BEGIN. The same
// seed and shape always produce the same document.
type Random struct {
	shape Shape
	rng   *rand.Rand
}

func NewRandom(seed uint64, shape Shape) *Random {
	return &Random{shape: shape, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Object builds the whole tree in memory. Use WriteTo for large shapes.
func (g *Random) Object() Object {
	return g.object(0, rootType)
}

// WriteTo streams a document without holding the tree in memory. It
// produces exactly the bytes Object().WriteTo would for the same seed, and
// stops generating at the first write error.
func (g *Random) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}
	g.stream(cw, 0, rootType)
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

func (g *Random) object(depth int, typ string) Object {
	o := Object{Type: typ}
	for i, n := 0, g.shape.Properties.sample(g.rng); i < n; i++ {
		o.Properties = append(o.Properties, g.property())
	}
	if depth < len(g.shape.Children) {
		for i, n := 0, g.shape.Children[depth].sample(g.rng); i < n; i++ {
			o.Children = append(o.Children, g.object(depth+1, g.name()))
		}
	}
	return o
}

func (g *Random) stream(w *countingWriter, depth int, typ string) {
	w.line("BEGIN:" + typ)
	for i, n := 0, g.shape.Properties.sample(g.rng); i < n; i++ {
		w.line(g.property().String())
	}
	if depth < len(g.shape.Children) {
		for i, n := 0, g.shape.Children[depth].sample(g.rng); i < n; i++ {
			if w.err != nil {
				return
			}
			g.stream(w, depth+1, g.name())
		}
	}
	w.line("END:" + typ)
}

func (g *Random) property() ContentLine {
	name := g.name()
	for strings.EqualFold(name, "BEGIN") {
		name = g.name()
	}

	l := ContentLine{Name: name}
	for i, n := 0, g.shape.Params.sample(g.rng); i < n; i++ {
		p := Param{Name: g.name()}
		for j, m := 0, g.shape.ParamValues.sample(g.rng); j < m; j++ {
			p.Values = append(p.Values, g.value())
		}
		l.Params = append(l.Params, p)
	}
	l.Value = g.value()
	return l
}

func (g *Random) name() string {
	return g.pick(nameAlphabet, g.shape.NameLength.sample(g.rng))
}

func (g *Random) value() string {
	return g.pick(valueAlphabet, g.shape.ValueLength.sample(g.rng))
}

func (g *Random) pick(alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rng.IntN(len(alphabet))]
	}
	return string(b)
}
