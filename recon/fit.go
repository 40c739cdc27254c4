package recon

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// FitParams bundles the line-fitting tunables (spec §4.7, §6).
type FitParams struct {
	VisibilityT int // clamped to a minimum of 3
}

func clampFitParams(p FitParams) FitParams {
	if p.VisibilityT < 3 {
		p.VisibilityT = 3
	}
	return p
}

// FitLine fits a 3D line to a cluster of 2D segments by SVD on the 3x2n
// scatter matrix of their current best 3D estimates, then identifies the
// reference member (the longest 3D hypothesis) and projects its endpoints
// onto the fitted line (spec §4.7). ok is false if fewer than two members
// have a 3D estimate, or if the projection is degenerate (the candidate
// Open Question: a center-crossing fit with a zero-area scatter has no
// well-defined direction).
func FitLine(reg *Registry, cluster []Segment2D, estimates map[Segment2D]Estimated3D) (LineCluster3D, bool) {
	var points []Point3
	for _, seg := range cluster {
		est, ok := estimates[seg]
		if !ok {
			continue
		}
		points = append(points, est.Geom.P1, est.Geom.P2)
	}
	if len(points) < 4 {
		return LineCluster3D{}, false
	}

	centroid := centroidOf(points)
	direction, ok := fitDirectionSVD(points, centroid)
	if !ok {
		return LineCluster3D{}, false
	}

	reference := longestMember(cluster, estimates)
	refView := reg.Get(reference.CamID)
	if refView == nil {
		return LineCluster3D{}, false
	}
	refSeg := refView.Segment(reference.SegID)

	s1, ok1 := projectOntoLine(direction, NormalizedRay(refView.Cam, refSeg.P1), centroid.Sub(refView.Cam.Center()))
	s2, ok2 := projectOntoLine(direction, NormalizedRay(refView.Cam, refSeg.P2), centroid.Sub(refView.Cam.Center()))
	if !ok1 || !ok2 {
		return LineCluster3D{}, false
	}

	line := Segment3D{
		P1: centroid.Add(direction.Scale(s1)),
		P2: centroid.Add(direction.Scale(s2)),
	}

	return LineCluster3D{
		Line:      line,
		Reference: reference,
		Members:   append([]Segment2D(nil), cluster...),
	}, true
}

func centroidOf(points []Point3) Point3 {
	var sum Point3
	for _, p := range points {
		sum = sum.Add(p)
	}
	n := float64(len(points))
	return Point3{sum.X / n, sum.Y / n, sum.Z / n}
}

// fitDirectionSVD computes the dominant direction of a 3D point scatter:
// stack the centered points into a 3xN matrix L, form the scatter S =
// L*L^T, and take the left singular vector of S with the largest singular
// value (spec §4.7).
func fitDirectionSVD(points []Point3, centroid Point3) (Vec3, bool) {
	n := len(points)
	data := make([]float64, 3*n)
	for i, p := range points {
		c := p.Sub(centroid)
		data[i] = c.X
		data[n+i] = c.Y
		data[2*n+i] = c.Z
	}
	l := mat.NewDense(3, n, data)

	var scatter mat.Dense
	scatter.Mul(l, l.T())

	var svd mat.SVD
	if !svd.Factorize(&scatter, mat.SVDFull) {
		return Vec3{}, false
	}
	var u mat.Dense
	svd.UTo(&u)
	dir := Vec3{u.At(0, 0), u.At(1, 0), u.At(2, 0)}
	if dir.Norm() < epsGeom {
		return Vec3{}, false
	}
	return dir.Normalized(), true
}

// longestMember returns the cluster member whose current 3D hypothesis
// has the greatest length (spec §4.7's reference segment).
func longestMember(cluster []Segment2D, estimates map[Segment2D]Estimated3D) Segment2D {
	best := cluster[0]
	bestLen := -1.0
	for _, seg := range cluster {
		est, ok := estimates[seg]
		if !ok {
			continue
		}
		l := est.Geom.Length()
		if l > bestLen {
			bestLen = l
			best = seg
		}
	}
	return best
}

// projectOntoLine minimizes the squared distance between the ray P + s*u
// (u = fitted direction, P = line anchor) and the camera ray C + t*v
// (v = endpoint ray, w = P - C), solving for s:
//
//	s = (b*e - c*d) / (a*c - b^2)
//	a = u.u, b = u.v, c = v.v, d = u.w, e = v.w
//
// (spec §4.7). ok is false if the denominator is at or below epsGeom,
// meaning u and v are (near-)parallel.
func projectOntoLine(u, v, w Vec3) (float64, bool) {
	a := u.Dot(u)
	b := u.Dot(v)
	c := v.Dot(v)
	d := u.Dot(w)
	e := v.Dot(w)
	denom := a*c - b*b
	if math.Abs(denom) <= epsGeom {
		return 0, false
	}
	return (b*e - c*d) / denom, true
}

// endpointEvent is one tagged endpoint projection used by the
// collinear-interval sweep (spec §4.7).
type endpointEvent struct {
	member Segment2D
	camID  int
	pos    float64 // signed position along the fitted line, from the centroid
	point  Point3
}

// ExtractCollinearIntervals sweeps a fitted cluster's member endpoints,
// projected onto the fitted line, to find sub-intervals supported by at
// least 3 distinct cameras simultaneously (spec §4.7). Requires at least 6
// endpoint events (>= 3 members); otherwise returns no intervals.
func ExtractCollinearIntervals(reg *Registry, line LineCluster3D, centroid Point3, direction Vec3) []Segment3D {
	var events []endpointEvent
	for _, seg := range line.Members {
		view := reg.Get(seg.CamID)
		if view == nil {
			continue
		}
		geom := view.Segment(seg.SegID)
		w := centroid.Sub(view.Cam.Center())

		for _, pix := range []Point2{geom.P1, geom.P2} {
			ray := NormalizedRay(view.Cam, pix)
			s, ok := projectOntoLine(direction, ray, w)
			if !ok {
				continue
			}
			events = append(events, endpointEvent{
				member: seg,
				camID:  seg.CamID,
				pos:    s,
				point:  centroid.Add(direction.Scale(s)),
			})
		}
	}
	if len(events) < 6 {
		return nil
	}

	sort.Slice(events, func(i, j int) bool { return events[i].pos < events[j].pos })

	openMember := make(map[Segment2D]bool)
	camOpenCount := make(map[int]int)
	var intervals []Segment3D
	var open bool
	var start Point3

	for _, ev := range events {
		wasOpen := openMember[ev.member]
		if wasOpen {
			openMember[ev.member] = false
			camOpenCount[ev.camID]--
		} else {
			openMember[ev.member] = true
			camOpenCount[ev.camID]++
		}

		distinctOpenCams := 0
		for _, c := range camOpenCount {
			if c > 0 {
				distinctOpenCams++
			}
		}

		if !open && distinctOpenCams >= 3 {
			open = true
			start = ev.point
		} else if open && distinctOpenCams < 3 {
			open = false
			intervals = append(intervals, Segment3D{P1: start, P2: ev.point})
		}
	}

	return intervals
}
