package detect

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/kwv/line3d/recon"
)

type fakeRawDetector struct {
	segs []recon.Segment2DGeom
	err  error
}

func (f *fakeRawDetector) DetectRaw(img image.Image) ([]recon.Segment2DGeom, error) {
	return f.segs, f.err
}

func encodedPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestWrapperDetectPassesThroughAtFullResolution(t *testing.T) {
	raw := &fakeRawDetector{segs: []recon.Segment2DGeom{
		{P1: recon.Point2{X: 0, Y: 0}, P2: recon.Point2{X: 100, Y: 0}},
	}}
	w := &Wrapper{Raw: raw, MaxDim: 2000, MinLenFactor: 0}

	data := encodedPNG(t, 200, 100)
	got, err := w.Detect(data, 200, 100)
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if len(got) != 1 || got[0].P2.X != 100 {
		t.Errorf("Detect() at full resolution (no downscale needed) = %v, want the raw segment unchanged", got)
	}
}

func TestWrapperDetectAppliesMinLengthFilter(t *testing.T) {
	raw := &fakeRawDetector{segs: []recon.Segment2DGeom{
		{P1: recon.Point2{X: 0, Y: 0}, P2: recon.Point2{X: 1, Y: 0}},   // length 1, too short
		{P1: recon.Point2{X: 0, Y: 0}, P2: recon.Point2{X: 100, Y: 0}}, // length 100, kept
	}}
	w := &Wrapper{Raw: raw, MaxDim: 0, MinLenFactor: 0.1} // diagonal=hypot(200,100)~223.6, min len ~22.4

	data := encodedPNG(t, 200, 100)
	got, err := w.Detect(data, 200, 100)
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d segments, want 1 (the short segment should be filtered)", len(got))
	}
	if got[0].P2.X != 100 {
		t.Errorf("Detect() kept segment = %v, want the length-100 one", got[0])
	}
}

func TestWrapperDetectDownscalesAndRescalesCoordinatesBack(t *testing.T) {
	raw := &fakeRawDetector{segs: []recon.Segment2DGeom{
		{P1: recon.Point2{X: 0, Y: 0}, P2: recon.Point2{X: 100, Y: 0}},
	}}
	w := &Wrapper{Raw: raw, MaxDim: 100, MinLenFactor: 0} // forces a 0.25x downscale of a 400x100 image

	data := encodedPNG(t, 400, 100)
	got, err := w.Detect(data, 400, 100)
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d segments, want 1", len(got))
	}
	// The raw detector saw a 100x25 downscaled image (scale=0.25); a
	// 100px segment there rescales back to 400px at full resolution.
	if got[0].P2.X != 400 {
		t.Errorf("Detect() rescaled P2.X = %v, want 400", got[0].P2.X)
	}
}

func TestWrapperDetectPropagatesRawError(t *testing.T) {
	wantErr := errTest("boom")
	raw := &fakeRawDetector{err: wantErr}
	w := &Wrapper{Raw: raw}
	data := encodedPNG(t, 10, 10)
	if _, err := w.Detect(data, 10, 10); err == nil {
		t.Errorf("Detect() should propagate the raw detector's error")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestNewWrapperDefaults(t *testing.T) {
	w := NewWrapper(&fakeRawDetector{})
	if w.MaxDim != 2000 || w.MinLenFactor != 0.005 {
		t.Errorf("NewWrapper() defaults = %+v, want MaxDim=2000 MinLenFactor=0.005", w)
	}
}
