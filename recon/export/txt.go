package export

import (
	"fmt"
	"io"

	"github.com/kwv/line3d/recon"
)

// WriteTXT writes lines in the whitespace-separated TXT format (spec §6):
// per final line, the count of 3D intervals, then each interval's six
// scalars (P1,P2), then the count of 2D residuals, then each
// `cam_id seg_id x1 y1 x2 y2`.
func WriteTXT(w io.Writer, lines []recon.FinalLine3D, reg *recon.Registry) error {
	bw := newCountingWriter(w)

	for _, fl := range lines {
		fmt.Fprintf(bw, "%d", len(fl.Intervals))
		for _, seg := range fl.Intervals {
			fmt.Fprintf(bw, " %g %g %g %g %g %g",
				seg.P1.X, seg.P1.Y, seg.P1.Z, seg.P2.X, seg.P2.Y, seg.P2.Z)
		}

		fmt.Fprintf(bw, " %d", len(fl.Cluster.Members))
		for _, m := range fl.Cluster.Members {
			view := reg.Get(m.CamID)
			if view == nil {
				continue
			}
			geom := view.Segment(m.SegID)
			fmt.Fprintf(bw, " %d %d %g %g %g %g", m.CamID, m.SegID, geom.P1.X, geom.P1.Y, geom.P2.X, geom.P2.Y)
		}
		fmt.Fprintln(bw)
	}
	return bw.err
}
