// Package detect provides the external line-segment detector collaborator
// contract (spec §6): a pixel-space 4-tuple detector interface, a
// downscale-before-detect wrapper for oversized images, and an opaque
// on-disk segment cache.
package detect

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/kwv/line3d/recon"
)

// RawDetector is the minimal external collaborator: given decoded pixels,
// return detected segments as pixel-space endpoints at that image's
// resolution. Real implementations shell out to an LSD binary or call a
// CGO wrapper; neither is part of this module (spec §6).
type RawDetector interface {
	DetectRaw(img image.Image) ([]recon.Segment2DGeom, error)
}

// Wrapper adapts a RawDetector into a recon.Detector, applying the
// downscale-before-detect policy and minimum-length filter from spec §6:
// if the image's longest side exceeds MaxDim, the detector runs on a
// downscaled copy and coordinates are rescaled back; segments shorter than
// MinLenFactor*diagonal (measured at full resolution) are dropped.
type Wrapper struct {
	Raw          RawDetector
	MaxDim       int     // 0 disables downscaling
	MinLenFactor float64 // 0 disables the minimum-length filter
}

// NewWrapper creates a Wrapper with the spec's suggested defaults
// (MaxDim=2000, MinLenFactor=0.005).
func NewWrapper(raw RawDetector) *Wrapper {
	return &Wrapper{Raw: raw, MaxDim: 2000, MinLenFactor: 0.005}
}

// Detect implements recon.Detector.
func (w *Wrapper) Detect(data []byte, width, height int) ([]recon.Segment2DGeom, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	bounds := img.Bounds()
	fullW, fullH := bounds.Dx(), bounds.Dy()
	diagonal := math.Hypot(float64(fullW), float64(fullH))

	target := img
	scale := 1.0
	if w.MaxDim > 0 {
		longest := fullW
		if fullH > longest {
			longest = fullH
		}
		if longest > w.MaxDim {
			scale = float64(w.MaxDim) / float64(longest)
			dst := image.NewRGBA(image.Rect(0, 0, int(float64(fullW)*scale), int(float64(fullH)*scale)))
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
			target = dst
		}
	}

	raw, err := w.Raw.DetectRaw(target)
	if err != nil {
		return nil, err
	}

	minLen := 0.0
	if w.MinLenFactor > 0 {
		minLen = w.MinLenFactor * diagonal
	}

	out := make([]recon.Segment2DGeom, 0, len(raw))
	for _, seg := range raw {
		rescaled := recon.Segment2DGeom{
			P1: recon.Point2{X: seg.P1.X / scale, Y: seg.P1.Y / scale},
			P2: recon.Point2{X: seg.P2.X / scale, Y: seg.P2.Y / scale},
		}
		length := math.Hypot(rescaled.P2.X-rescaled.P1.X, rescaled.P2.Y-rescaled.P1.Y)
		if length < minLen {
			continue
		}
		out = append(out, rescaled)
	}
	return out, nil
}
