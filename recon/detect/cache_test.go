package detect

import (
	"path/filepath"
	"testing"

	"github.com/kwv/line3d/recon"
)

func TestCachePath(t *testing.T) {
	got := CachePath("/tmp/cache", 3, 640, 480)
	want := filepath.Join("/tmp/cache", "segments_3_640x480.bin")
	if got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
}

func TestSaveLoadCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := CachePath(dir, 1, 100, 100)

	want := []recon.Segment2DGeom{
		{P1: recon.Point2{X: 0, Y: 0}, P2: recon.Point2{X: 10, Y: 20}},
		{P1: recon.Point2{X: 5, Y: 5}, P2: recon.Point2{X: 15, Y: 25}},
	}
	if err := SaveCache(path, want); err != nil {
		t.Fatalf("SaveCache() failed: %v", err)
	}
	got, err := LoadCache(path)
	if err != nil {
		t.Fatalf("LoadCache() failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("LoadCache() returned %d segments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadCacheNotExistReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	segs, err := LoadCache(filepath.Join(dir, "missing.bin"))
	if err != nil {
		t.Fatalf("LoadCache() on a missing file returned an error: %v", err)
	}
	if segs != nil {
		t.Errorf("LoadCache() on a missing file = %v, want nil", segs)
	}
}
