package export

import (
	"testing"

	"github.com/kwv/line3d/recon"
)

func oneFinalLineBehind() []recon.FinalLine3D {
	return []recon.FinalLine3D{
		{Intervals: []recon.Segment3D{
			{P1: recon.Point3{X: 0, Y: 0, Z: -5}, P2: recon.Point3{X: 0, Y: 1, Z: -5}},
		}},
	}
}

func TestProjectedBoundsMissingView(t *testing.T) {
	reg := buildRegistryWithOneSegment(t)
	_, ok := ProjectedBounds(reg, oneFinalLine(), 404)
	if ok {
		t.Errorf("ProjectedBounds() with an unregistered camera id should report ok=false")
	}
}

func TestProjectedBoundsFindsForwardIntervals(t *testing.T) {
	reg := buildRegistryWithOneSegment(t)
	bound, ok := ProjectedBounds(reg, oneFinalLine(), 1)
	if !ok {
		t.Fatalf("ProjectedBounds() ok=false, want true (the interval projects forward)")
	}
	// camera at the origin looking down +Z with focal 1000: (0,0,5) -> (0,0),
	// (0,1,5) -> (0,200).
	if bound.Min[1] != 0 || bound.Max[1] != 200 {
		t.Errorf("ProjectedBounds() Y range = [%v,%v], want [0,200]", bound.Min[1], bound.Max[1])
	}
}

func TestProjectedBoundsAllBehindCamera(t *testing.T) {
	reg := buildRegistryWithOneSegment(t)
	lines := oneFinalLineBehind()
	_, ok := ProjectedBounds(reg, lines, 1)
	if ok {
		t.Errorf("ProjectedBounds() with every interval behind the camera should report ok=false")
	}
}
