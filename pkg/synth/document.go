package synth

import (
	"io"
	"strings"
	"unicode/utf8"
)

// MaxLineOctets is the RFC 5545 content line limit, excluding the CRLF.
const MaxLineOctets = 75

type Param struct {
	Name   string
	Values []string
}

type ContentLine struct {
	Name   string
	Params []Param
	Value  string
}

// String renders the unfolded line. Param values containing a separator are
// double-quoted.
func (l ContentLine) String() string {
	var b strings.Builder
	b.WriteString(l.Name)
	for _, p := range l.Params {
		b.WriteByte(';')
		b.WriteString(p.Name)
		b.WriteByte('=')
		for i, v := range p.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(v, ";:,") {
				b.WriteByte('"')
				b.WriteString(v)
				b.WriteByte('"')
			} else {
				b.WriteString(v)
			}
		}
	}
	b.WriteByte(':')
	b.WriteString(l.Value)
	return b.String()
}

// Object is one BEGIN/END block with its properties and nested blocks.
type Object struct {
	Type       string
	Properties []ContentLine
	Children   []Object
}

// WriteTo serialises o with folded, CRLF-terminated lines.
func (o Object) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	o.write(cw)
	return cw.n, cw.err
}

func (o Object) String() string {
	var b strings.Builder
	o.WriteTo(&b)
	return b.String()
}

func (o Object) write(w *countingWriter) {
	w.line("BEGIN:" + o.Type)
	for _, p := range o.Properties {
		w.line(p.String())
	}
	for _, c := range o.Children {
		c.write(w)
	}
	w.line("END:" + o.Type)
}

// Fold splits line into physical lines of at most MaxLineOctets octets,
// joined by CRLF and a single leading space. Multi-byte characters are never
// split.
func Fold(line string) string {
	return foldAt(line, MaxLineOctets)
}

func foldAt(line string, limit int) string {
	if len(line) <= limit {
		return line
	}

	var b strings.Builder
	b.Grow(len(line) + len(line)/limit*3)

	width := 0
	for _, r := range line {
		n := utf8.RuneLen(r)
		if width+n > limit {
			b.WriteString("\r\n ")
			width = 1
		}
		b.WriteRune(r)
		width += n
	}
	return b.String()
}

// countingWriter keeps the first error and the number of bytes written.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countingWriter) line(s string) {
	io.WriteString(c, Fold(s))
	io.WriteString(c, "\r\n")
}
