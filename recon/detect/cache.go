package detect

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kwv/line3d/recon"
)

// CachePath builds the segment cache filename for a camera at a given
// resolution: `segments_<cam>_<w>x<h>.bin` (spec §6, "opaque to the core").
func CachePath(dir string, camID, width, height int) string {
	return filepath.Join(dir, fmt.Sprintf("segments_%d_%dx%d.bin", camID, width, height))
}

// LoadCache reads a segment cache file: a count-prefixed list of float32
// quadruples (x1,y1,x2,y2). Returns (nil, nil) if the file does not exist,
// the same "not cached yet" convention as the teacher's LoadCalibration.
func LoadCache(path string) ([]recon.Segment2DGeom, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading segment cache: %w", err)
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading segment cache header: %w", err)
	}

	segs := make([]recon.Segment2DGeom, count)
	quad := make([]float32, 4)
	for i := uint32(0); i < count; i++ {
		if err := binary.Read(f, binary.LittleEndian, &quad); err != nil {
			return nil, fmt.Errorf("reading segment cache entry %d: %w", i, err)
		}
		segs[i] = recon.Segment2DGeom{
			P1: recon.Point2{X: float64(quad[0]), Y: float64(quad[1])},
			P2: recon.Point2{X: float64(quad[2]), Y: float64(quad[3])},
		}
	}
	return segs, nil
}

// SaveCache writes segs to path in the cache's binary format.
func SaveCache(path string, segs []recon.Segment2DGeom) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating segment cache directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing segment cache: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(segs))); err != nil {
		return fmt.Errorf("writing segment cache header: %w", err)
	}
	for _, s := range segs {
		quad := [4]float32{float32(s.P1.X), float32(s.P1.Y), float32(s.P2.X), float32(s.P2.Y)}
		if err := binary.Write(f, binary.LittleEndian, &quad); err != nil {
			return fmt.Errorf("writing segment cache entry: %w", err)
		}
	}
	return nil
}
