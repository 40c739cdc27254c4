package recon

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const epsGeom = 1e-9

// Mat3 is a 3x3 matrix. It wraps gonum's mat.Dense the way the calibration
// code in the retrieved corpus wraps small linear-algebra problems: thin
// helpers over *mat.Dense rather than a bespoke 3x3 type.
type Mat3 struct {
	*mat.Dense
}

// NewMat3 builds a Mat3 from nine row-major entries.
func NewMat3(m00, m01, m02, m10, m11, m12, m20, m21, m22 float64) Mat3 {
	return Mat3{mat.NewDense(3, 3, []float64{m00, m01, m02, m10, m11, m12, m20, m21, m22})}
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return NewMat3(1, 0, 0, 0, 1, 0, 0, 0, 1)
}

// MulVec multiplies the matrix by a 3-vector given as a Point3.
func (m Mat3) MulVec(v Point3) Point3 {
	var out mat.VecDense
	out.MulVec(m.Dense, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return Point3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Transpose returns the matrix transpose.
func (m Mat3) Transpose() Mat3 {
	var out mat.Dense
	out.CloneFrom(m.Dense.T())
	return Mat3{&out}
}

// Mul multiplies two 3x3 matrices.
func (m Mat3) Mul(o Mat3) Mat3 {
	var out mat.Dense
	out.Mul(m.Dense, o.Dense)
	return Mat3{&out}
}

// Inverse returns the matrix inverse. Callers must ensure the matrix is
// non-singular; this package never calls it on caller-supplied intrinsics
// without having first checked they parse as 3x3 (the engine does not
// validate intrinsics per spec §1, so a singular K simply propagates NaNs,
// which downstream degenerate-geometry checks then reject).
func (m Mat3) Inverse() Mat3 {
	var out mat.Dense
	_ = out.Inverse(m.Dense)
	return Mat3{&out}
}

// skewSymmetric returns the skew-symmetric cross-product matrix [t]x such
// that [t]x * v == t.Cross(v).
func skewSymmetric(t Point3) Mat3 {
	return NewMat3(
		0, -t.Z, t.Y,
		t.Z, 0, -t.X,
		-t.Y, t.X, 0,
	)
}

// Camera is the calibrated pose of one view: intrinsics K, rotation R,
// translation t (world-to-camera), and the derived camera center.
type Camera struct {
	K, R Mat3
	T    Point3 // world-to-camera translation
}

// Center returns C = -R^T * t, the camera center in world coordinates.
func (c Camera) Center() Point3 {
	return c.R.Transpose().MulVec(c.T).Scale(-1)
}

// RelativePose computes R = R_t * R_s^T and t = t_t - R * t_s, the pose of
// the target camera relative to the source camera (spec §4.1).
func RelativePose(src, tgt Camera) (r Mat3, t Point3) {
	r = tgt.R.Mul(src.R.Transpose())
	t = tgt.T.Sub(r.MulVec(src.T))
	return r, t
}

// FundamentalMatrix computes F mapping a point in src's image to its
// epipolar line in tgt's image: F = K_t^-T [t]x R K_s^-1, with R, t the
// relative pose of tgt w.r.t. src (spec §4.1).
func FundamentalMatrix(src, tgt Camera) Mat3 {
	r, t := RelativePose(src, tgt)
	e := skewSymmetric(t).Mul(r)
	ktInvT := tgt.K.Inverse().Transpose()
	ksInv := src.K.Inverse()
	return ktInvT.Mul(e).Mul(ksInv)
}

// NormalizedRay returns the unit direction, in world coordinates, of the
// ray through pixel x for the given camera (spec §4.1).
func NormalizedRay(cam Camera, x Point2) Vec3 {
	homog := Point3{x.X, x.Y, 1}
	dirCam := cam.K.Inverse().MulVec(homog)
	dirWorld := cam.R.Transpose().MulVec(dirCam)
	return dirWorld.Normalized()
}

// Project forward-projects a world point into the camera's pixel space.
// ok is false if the point is behind the camera (non-positive depth).
func Project(cam Camera, p Point3) (Point2, bool) {
	camSpace := cam.R.MulVec(p).Add(cam.T)
	if camSpace.Z <= epsGeom {
		return Point2{}, false
	}
	pix := cam.K.MulVec(camSpace)
	return Point2{pix.X / camSpace.Z, pix.Y / camSpace.Z}, true
}

// TwoWayTriangulate computes depths for the source endpoints p1,p2 against
// the target camera's ray plane, and for the target endpoints q1,q2
// against the source camera's ray plane (spec §4.1). Returns ok=false if
// any denominator's magnitude is below epsGeom, matching the spec's
// "(-1,-1)" degenerate return converted to a boolean.
func TwoWayTriangulate(src, tgt Camera, p1, p2, q1, q2 Point2) (depthP1, depthP2, depthQ1, depthQ2 float64, ok bool) {
	dp1, dp2, okP := triangulatePair(src, tgt, p1, p2, q1, q2)
	if !okP {
		return -1, -1, -1, -1, false
	}
	dq1, dq2, okQ := triangulatePair(tgt, src, q1, q2, p1, p2)
	if !okQ {
		return -1, -1, -1, -1, false
	}
	return dp1, dp2, dq1, dq2, true
}

// triangulatePair computes the depth of srcA,srcB (pixels in the src
// camera) from the plane through the tgt camera center with normal formed
// by the tgt camera's rays through tgtA,tgtB.
func triangulatePair(src, tgt Camera, srcA, srcB, tgtA, tgtB Point2) (depthA, depthB float64, ok bool) {
	rayA := NormalizedRay(tgt, tgtA)
	rayB := NormalizedRay(tgt, tgtB)
	n := rayA.Cross(rayB)
	nNorm := n.Norm()
	if nNorm < epsGeom {
		return -1, -1, false
	}
	n = n.Scale(1 / nNorm)

	baseline := tgt.Center().Sub(src.Center())
	num := baseline.Dot(n)

	rA := NormalizedRay(src, srcA)
	rB := NormalizedRay(src, srcB)
	denomA := rA.Dot(n)
	denomB := rB.Dot(n)
	if math.Abs(denomA) < epsGeom || math.Abs(denomB) < epsGeom {
		return -1, -1, false
	}
	return num / denomA, num / denomB, true
}

// line2D is a homogeneous 2D line ax+by+c=0 represented as (a,b,c).
type line2D = Point3

// epipolarLine computes F * p, the epipolar line of pixel p under F.
func epipolarLine(f Mat3, p Point2) line2D {
	return f.MulVec(Point3{p.X, p.Y, 1})
}

// lineThroughPoints returns the homogeneous line through two pixels.
func lineThroughPoints(a, b Point2) line2D {
	return Point3{a.X, a.Y, 1}.Cross(Point3{b.X, b.Y, 1})
}

// intersectLines intersects two homogeneous 2D lines, returning ok=false
// if they are parallel (intersection at infinity, |w| < epsGeom).
func intersectLines(l1, l2 line2D) (Point2, bool) {
	x := l1.Cross(l2)
	if math.Abs(x.Z) < epsGeom {
		return Point2{}, false
	}
	return Point2{x.X / x.Z, x.Y / x.Z}, true
}

// MutualEpipolarOverlap scores the overlap of the four collinear points
// {p1,p2,q1,q2} along their shared line (spec §4.1). Pairs whose outer
// span is shorter than 1 unit return 0.
func MutualEpipolarOverlap(p1, p2, q1, q2 Point2) float64 {
	// Project all four points onto a 1D parameter along the line through
	// q1,q2 using arclength from q1.
	dir := Point2{q2.X - q1.X, q2.Y - q1.Y}
	length := math.Hypot(dir.X, dir.Y)
	if length < epsGeom {
		return 0
	}
	ux, uy := dir.X/length, dir.Y/length
	param := func(p Point2) float64 {
		return (p.X-q1.X)*ux + (p.Y-q1.Y)*uy
	}
	a1, a2 := param(p1), param(p2)
	b1, b2 := param(q1), param(q2)

	lo := math.Min(a1, a2)
	hi := math.Max(a1, a2)
	blo := math.Min(b1, b2)
	bhi := math.Max(b1, b2)

	outerLo := math.Min(lo, blo)
	outerHi := math.Max(hi, bhi)
	outer := outerHi - outerLo
	if outer < 1.0 {
		return 0
	}

	innerLo := math.Max(lo, blo)
	innerHi := math.Min(hi, bhi)
	inner := innerHi - innerLo
	if inner <= epsGeom {
		return 0
	}
	return inner / outer
}

// AngleBetweenSegments returns the angle in degrees between two 3D
// directions. If undirected is true the result is folded into [0,90]
// (spec §4.1).
func AngleBetweenSegments(d1, d2 Vec3, undirected bool) float64 {
	cos := clamp(d1.Dot(d2), -1, 1)
	angle := math.Acos(cos) * 180 / math.Pi
	if undirected && angle > 90 {
		angle = 180 - angle
	}
	return angle
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
