// Package recon implements the core multi-view 3D line reconstruction
// pipeline: visual-neighbor selection, pairwise epipolar matching,
// confidence scoring, affinity construction, and graph clustering with
// line fitting.
package recon

import "math"

// Point2 is a pixel-space 2D point.
type Point2 struct {
	X, Y float64
}

// Point3 is a world-space 3D point.
type Point3 struct {
	X, Y, Z float64
}

// Vec3 is a 3D direction/offset. It shares the Point3 representation; the
// distinction is purely semantic.
type Vec3 = Point3

func (a Point3) Add(b Point3) Point3 { return Point3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Point3) Sub(b Point3) Point3 { return Point3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Point3) Scale(s float64) Point3 { return Point3{a.X * s, a.Y * s, a.Z * s} }
func (a Point3) Dot(b Point3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Point3) Cross(b Point3) Point3 {
	return Point3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}
func (a Point3) Norm() float64 { return math.Sqrt(a.Dot(a)) }
func (a Point3) Normalized() Point3 {
	n := a.Norm()
	if n < 1e-12 {
		return a
	}
	return a.Scale(1 / n)
}

// Segment2D identifies a 2D segment stored in a view by (camera, index).
type Segment2D struct {
	CamID int
	SegID int
}

// Segment2DGeom is the endpoint geometry of a 2D segment in pixel space.
type Segment2DGeom struct {
	P1, P2 Point2
}

// Segment3D is an ordered pair of 3D endpoints. Equality is by endpoints,
// not by direction (spec §3).
type Segment3D struct {
	P1, P2 Point3
}

// Length returns the Euclidean length of the segment.
func (s Segment3D) Length() float64 {
	return s.P1.Sub(s.P2).Norm()
}

// Direction returns the unit vector from P1 to P2. Degenerate (zero-length)
// segments return the zero vector.
func (s Segment3D) Direction() Vec3 {
	d := s.P2.Sub(s.P1)
	n := d.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	return d.Scale(1 / n)
}

// Match is a candidate 2D<->2D correspondence discovered by the pairwise
// matcher (§3). All four depths must be strictly positive once the match
// is retained.
type Match struct {
	SrcCam, SrcSeg int
	TgtCam, TgtSeg int

	OverlapScore float64
	Score3D      float64

	// Depths along the respective camera ray, from two-way triangulation.
	DepthP1, DepthP2 float64 // src endpoints, ray through target
	DepthQ1, DepthQ2 float64 // tgt endpoints, ray through source
}

// SourceSeg returns the Segment2D this match originates from.
func (m Match) SourceSeg() Segment2D { return Segment2D{CamID: m.SrcCam, SegID: m.SrcSeg} }

// TargetSeg returns the Segment2D this match points at.
func (m Match) TargetSeg() Segment2D { return Segment2D{CamID: m.TgtCam, SegID: m.TgtSeg} }

// Swapped returns the mirror of m: src and tgt swapped, score3D reset to
// zero so the inverse is rescored once its owning view becomes the source
// (spec §4.5, "inverse materialization").
func (m Match) Swapped() Match {
	return Match{
		SrcCam: m.TgtCam, SrcSeg: m.TgtSeg,
		TgtCam: m.SrcCam, TgtSeg: m.SrcSeg,
		OverlapScore: m.OverlapScore,
		Score3D:      0,
		DepthP1:      m.DepthQ1, DepthP2: m.DepthQ2,
		DepthQ1: m.DepthP1, DepthQ2: m.DepthP2,
	}
}

// Valid reports whether all four depths are strictly positive, per the
// stored-Match invariant in spec §3.
func (m Match) Valid() bool {
	return m.DepthP1 > 0 && m.DepthP2 > 0 && m.DepthQ1 > 0 && m.DepthQ2 > 0
}

// Estimated3D is the best-scoring Match for a source 2D segment together
// with its back-projected Segment3D (spec §3).
type Estimated3D struct {
	Seg    Segment2D
	Best   Match
	Geom   Segment3D
}

// AffinityEdge is a symmetric edge between two dense local ids in the
// affinity graph (spec §3).
type AffinityEdge struct {
	I, J   int
	Weight float64
}

// LineCluster3D is a fitted 3D line plus the 2D segments that support it.
type LineCluster3D struct {
	Line       Segment3D
	Reference  Segment2D
	Members    []Segment2D
}

// FinalLine3D is a cluster plus the collinear 3D intervals extracted from
// it (spec §4.7).
type FinalLine3D struct {
	Cluster   LineCluster3D
	Intervals []Segment3D
}
