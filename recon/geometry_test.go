package recon

import (
	"math"
	"testing"
)

func simpleCam(center Point3, focal float64) Camera {
	// Looking down +Z, no rotation, axis-aligned intrinsics with no
	// principal-point offset -- enough to hand-verify triangulation.
	return Camera{
		K: NewMat3(focal, 0, 0, 0, focal, 0, 0, 0, 1),
		R: Identity3(),
		T: center.Scale(-1),
	}
}

func TestMat3Identity(t *testing.T) {
	id := Identity3()
	v := Point3{1, 2, 3}
	if got := id.MulVec(v); got != v {
		t.Errorf("Identity3().MulVec(%v) = %v, want %v", v, got, v)
	}
}

func TestMat3Transpose(t *testing.T) {
	m := NewMat3(1, 2, 3, 4, 5, 6, 7, 8, 9)
	tr := m.Transpose()
	want := NewMat3(1, 4, 7, 2, 5, 8, 3, 6, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !almostEqualF(tr.At(i, j), want.At(i, j)) {
				t.Errorf("Transpose()[%d][%d] = %v, want %v", i, j, tr.At(i, j), want.At(i, j))
			}
		}
	}
}

func TestMat3MulAndInverse(t *testing.T) {
	m := NewMat3(2, 0, 0, 0, 4, 0, 0, 0, 1)
	inv := m.Inverse()
	identity := m.Mul(inv)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(identity.At(i, j)-want) > 1e-9 {
				t.Errorf("M * M^-1 [%d][%d] = %v, want %v", i, j, identity.At(i, j), want)
			}
		}
	}
}

func TestCameraCenter(t *testing.T) {
	cam := simpleCam(Point3{5, -3, 2}, 1000)
	got := cam.Center()
	want := Point3{5, -3, 2}
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 || math.Abs(got.Z-want.Z) > 1e-9 {
		t.Errorf("Center() = %v, want %v", got, want)
	}
}

func TestProjectBehindCamera(t *testing.T) {
	cam := simpleCam(Point3{0, 0, 0}, 1000)
	// Point with camera-space Z <= 0 must be rejected.
	_, ok := Project(cam, Point3{0, 0, -5})
	if ok {
		t.Errorf("Project() behind camera returned ok=true")
	}
}

func TestProjectForward(t *testing.T) {
	cam := simpleCam(Point3{0, 0, 0}, 1000)
	pix, ok := Project(cam, Point3{0, 1, 5})
	if !ok {
		t.Fatalf("Project() ok=false, want true")
	}
	want := Point2{0, 200} // 1000*1/5
	if !almostEqualF(pix.X, want.X) || !almostEqualF(pix.Y, want.Y) {
		t.Errorf("Project() = %v, want %v", pix, want)
	}
}

func TestNormalizedRayUnitLength(t *testing.T) {
	cam := simpleCam(Point3{0, 0, 0}, 1000)
	ray := NormalizedRay(cam, Point2{200, -100})
	if !almostEqualF(ray.Norm(), 1) {
		t.Errorf("NormalizedRay() norm = %v, want 1", ray.Norm())
	}
}

func TestMutualEpipolarOverlap(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, q1, q2 Point2
		wantZero       bool
	}{
		{
			name: "exact correspondence, full overlap",
			p1:   Point2{-200, 0}, p2: Point2{-200, 200},
			q1: Point2{-200, 0}, q2: Point2{-200, 200},
		},
		{
			name: "degenerate short span returns zero",
			p1:   Point2{0, 0}, p2: Point2{0.1, 0},
			q1: Point2{0, 0}, q2: Point2{0.1, 0},
			wantZero: true,
		},
		{
			name:     "zero-length target line",
			p1:       Point2{0, 0}, p2: Point2{10, 0},
			q1:       Point2{5, 5}, q2: Point2{5, 5},
			wantZero: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MutualEpipolarOverlap(tt.p1, tt.p2, tt.q1, tt.q2)
			if tt.wantZero {
				if got != 0 {
					t.Errorf("MutualEpipolarOverlap() = %v, want 0", got)
				}
				return
			}
			if !almostEqualF(got, 1.0) {
				t.Errorf("MutualEpipolarOverlap() = %v, want 1.0", got)
			}
		})
	}
}

func TestAngleBetweenSegments(t *testing.T) {
	tests := []struct {
		name       string
		d1, d2     Vec3
		undirected bool
		want       float64
	}{
		{"identical directions", Vec3{1, 0, 0}, Vec3{1, 0, 0}, false, 0},
		{"perpendicular", Vec3{1, 0, 0}, Vec3{0, 1, 0}, false, 90},
		{"opposite, directed", Vec3{1, 0, 0}, Vec3{-1, 0, 0}, false, 180},
		{"opposite, undirected folds to 0", Vec3{1, 0, 0}, Vec3{-1, 0, 0}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleBetweenSegments(tt.d1, tt.d2, tt.undirected)
			if !almostEqualF(got, tt.want) {
				t.Errorf("AngleBetweenSegments() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestStereoPairGeometry exercises the full forward-projection /
// fundamental-matrix / triangulation chain on a simple two-camera rig: a
// unit-baseline stereo pair looking down +Z at a vertical segment, verified
// by hand before being written down here.
func TestStereoPairGeometry(t *testing.T) {
	camA := simpleCam(Point3{0, 0, 0}, 1000)
	camB := simpleCam(Point3{1, 0, 0}, 1000)

	p1, ok := Project(camA, Point3{0, 0, 5})
	if !ok {
		t.Fatalf("Project P1 into cam A failed")
	}
	p2, ok := Project(camA, Point3{0, 1, 5})
	if !ok {
		t.Fatalf("Project P2 into cam A failed")
	}
	q1, ok := Project(camB, Point3{0, 0, 5})
	if !ok {
		t.Fatalf("Project P1 into cam B failed")
	}
	q2, ok := Project(camB, Point3{0, 1, 5})
	if !ok {
		t.Fatalf("Project P2 into cam B failed")
	}

	f := FundamentalMatrix(camA, camB)
	epi1 := epipolarLine(f, p1)
	epi2 := epipolarLine(f, p2)
	targetLine := lineThroughPoints(q1, q2)

	got1, ok := intersectLines(epi1, targetLine)
	if !ok {
		t.Fatalf("intersectLines(epi1) degenerate")
	}
	if !almostEqualF(got1.X, q1.X) || !almostEqualF(got1.Y, q1.Y) {
		t.Errorf("epipolar intersection for P1 = %v, want %v", got1, q1)
	}

	got2, ok := intersectLines(epi2, targetLine)
	if !ok {
		t.Fatalf("intersectLines(epi2) degenerate")
	}
	if !almostEqualF(got2.X, q2.X) || !almostEqualF(got2.Y, q2.Y) {
		t.Errorf("epipolar intersection for P2 = %v, want %v", got2, q2)
	}

	overlap := MutualEpipolarOverlap(got1, got2, q1, q2)
	if !almostEqualF(overlap, 1.0) {
		t.Errorf("MutualEpipolarOverlap() = %v, want 1.0", overlap)
	}

	dp1, dp2, dq1, dq2, ok := TwoWayTriangulate(camA, camB, p1, p2, q1, q2)
	if !ok {
		t.Fatalf("TwoWayTriangulate() ok=false")
	}
	if dp1 <= 0 || dp2 <= 0 || dq1 <= 0 || dq2 <= 0 {
		t.Errorf("TwoWayTriangulate() produced non-positive depth: %v %v %v %v", dp1, dp2, dq1, dq2)
	}
	// P1 lies on camera A's principal axis, so its ray depth equals its Z.
	if math.Abs(dp1-5) > 1e-6 {
		t.Errorf("depthP1 = %v, want ~5", dp1)
	}
}
