package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kwv/line3d/recon"
)

// WriteOBJ writes lines as an OBJ file: one `v` line per endpoint in
// traversal order, followed by a block of `l i j` using 1-based indices
// (spec §6).
func WriteOBJ(w io.Writer, lines []recon.FinalLine3D) error {
	bw := newCountingWriter(w)

	type edge struct{ i, j int }
	var edges []edge
	idx := 0

	for _, fl := range lines {
		for _, seg := range fl.Intervals {
			fmt.Fprintf(bw, "v %g %g %g\n", seg.P1.X, seg.P1.Y, seg.P1.Z)
			idx++
			i := idx
			fmt.Fprintf(bw, "v %g %g %g\n", seg.P2.X, seg.P2.Y, seg.P2.Z)
			idx++
			j := idx
			edges = append(edges, edge{i: i, j: j})
		}
	}
	for _, e := range edges {
		fmt.Fprintf(bw, "l %d %d\n", e.i, e.j)
	}
	return bw.err
}

// ReadOBJ parses an OBJ file written by WriteOBJ back into a flat list of
// 3D segments (spec §8's OBJ round-trip property). Lines not matching `v`
// or `l` are ignored.
func ReadOBJ(r io.Reader) ([]recon.Segment3D, error) {
	var verts []recon.Point3
	var segs []recon.Segment3D

	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := scan.Text()
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case 'v':
			var x, y, z float64
			if _, err := fmt.Sscanf(line, "v %g %g %g", &x, &y, &z); err != nil {
				return nil, fmt.Errorf("parsing vertex line %q: %w", line, err)
			}
			verts = append(verts, recon.Point3{X: x, Y: y, Z: z})
		case 'l':
			var i, j int
			if _, err := fmt.Sscanf(line, "l %d %d", &i, &j); err != nil {
				return nil, fmt.Errorf("parsing edge line %q: %w", line, err)
			}
			if i < 1 || i > len(verts) || j < 1 || j > len(verts) {
				return nil, fmt.Errorf("edge line %q references out-of-range vertex", line)
			}
			segs = append(segs, recon.Segment3D{P1: verts[i-1], P2: verts[j-1]})
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return segs, nil
}
