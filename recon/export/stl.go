// Package export writes reconstructed line sets to the persisted output
// formats named in spec §6: STL, OBJ, TXT, plus an optional debug preview
// render.
package export

import (
	"fmt"
	"io"

	"github.com/kwv/line3d/recon"
)

// WriteSTL writes lines as ASCII STL: one degenerate facet per 3D segment,
// emitted as three vertices (P1,P2,P1) inside an `outer loop`, with a
// constant facet normal (spec §6).
func WriteSTL(w io.Writer, lines []recon.FinalLine3D) error {
	bw := newCountingWriter(w)
	fmt.Fprintln(bw, "solid line3d")
	for _, fl := range lines {
		for _, seg := range fl.Intervals {
			writeFacet(bw, seg)
		}
	}
	fmt.Fprintln(bw, "endsolid line3d")
	return bw.err
}

func writeFacet(w io.Writer, seg recon.Segment3D) {
	fmt.Fprintln(w, "  facet normal 1.0 0.0 0.0")
	fmt.Fprintln(w, "    outer loop")
	fmt.Fprintf(w, "      vertex %g %g %g\n", seg.P1.X, seg.P1.Y, seg.P1.Z)
	fmt.Fprintf(w, "      vertex %g %g %g\n", seg.P2.X, seg.P2.Y, seg.P2.Z)
	fmt.Fprintf(w, "      vertex %g %g %g\n", seg.P1.X, seg.P1.Y, seg.P1.Z)
	fmt.Fprintln(w, "    endloop")
	fmt.Fprintln(w, "  endfacet")
}

// countingWriter wraps an io.Writer to surface the first write error from a
// sequence of fmt.Fprint* calls without checking every return value inline.
type countingWriter struct {
	w   io.Writer
	err error
}

func newCountingWriter(w io.Writer) *countingWriter { return &countingWriter{w: w} }

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	if err != nil {
		c.err = err
	}
	return n, err
}
