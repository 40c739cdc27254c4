package export

import (
	"image/color"
	"image/png"
	"io"
	"log"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/kwv/line3d/recon"
)

// Preview renders final lines reprojected into a reference camera as a
// debug image, generalizing the teacher's VectorRenderer: instead of
// vectorizing vacuum map layers, it draws the reference-view reprojection
// of each fitted 3D line.
type Preview struct {
	Reg        *recon.Registry
	Lines      []recon.FinalLine3D
	Padding    float64
	Resolution canvas.Resolution
	LineColor  color.RGBA
}

// NewPreview creates a Preview with the teacher's default padding and DPI.
func NewPreview(reg *recon.Registry, lines []recon.FinalLine3D) *Preview {
	return &Preview{
		Reg:        reg,
		Lines:      lines,
		Padding:    20.0,
		Resolution: canvas.DPI(150),
		LineColor:  color.RGBA{R: 220, G: 30, B: 30, A: 255},
	}
}

type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// ProjectedBounds returns the orb.Bound enclosing every endpoint of every
// final line once reprojected into refCamID's view, and false if none
// project into that view (all intervals fall behind the camera). Callers
// use this to skip rendering an empty preview rather than emitting a blank
// canvas.
func ProjectedBounds(reg *recon.Registry, lines []recon.FinalLine3D, refCamID int) (orb.Bound, bool) {
	view := reg.Get(refCamID)
	if view == nil {
		return orb.Bound{}, false
	}

	var bound orb.Bound
	found := false
	for _, fl := range lines {
		for _, seg := range fl.Intervals {
			p1, ok1 := recon.Project(view.Cam, seg.P1)
			p2, ok2 := recon.Project(view.Cam, seg.P2)
			if !ok1 || !ok2 {
				continue
			}
			pt1 := orb.Point{p1.X, p1.Y}
			pt2 := orb.Point{p2.X, p2.Y}
			if !found {
				bound = orb.Bound{Min: pt1, Max: pt1}
				found = true
			}
			bound = bound.Extend(pt1).Extend(pt2)
		}
	}
	return bound, found
}

// RenderToSVG writes the preview as an SVG to w, reprojecting every
// interval into refCamID's view. Intervals whose reprojection fails
// (behind the camera) are skipped.
func (p *Preview) RenderToSVG(w io.Writer, refCamID int) error {
	view := p.Reg.Get(refCamID)
	if view == nil {
		return nil
	}
	if _, ok := ProjectedBounds(p.Reg, p.Lines, refCamID); !ok {
		log.Printf("preview: no intervals project into camera %d, rendering blank canvas", refCamID)
	}
	width, height := float64(view.Width)+2*p.Padding, float64(view.Height)+2*p.Padding

	svgRenderer := svg.New(w, width, height, nil)
	p.renderToCanvas(svgRenderer, view, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the preview as a PNG to w.
func (p *Preview) RenderToPNG(w io.Writer, refCamID int) error {
	view := p.Reg.Get(refCamID)
	if view == nil {
		return nil
	}
	if _, ok := ProjectedBounds(p.Reg, p.Lines, refCamID); !ok {
		log.Printf("preview: no intervals project into camera %d, rendering blank canvas", refCamID)
	}
	width, height := float64(view.Width)+2*p.Padding, float64(view.Height)+2*p.Padding

	rast := rasterizer.New(width, height, p.Resolution, canvas.DefaultColorSpace)
	p.renderToCanvas(rast, view, width, height)
	return png.Encode(w, rast)
}

func (p *Preview) renderToCanvas(renderer canvasRenderer, view *recon.View, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: p.LineColor}
	lineStyle.StrokeWidth = 1.5
	lineStyle.StrokeCapper = canvas.RoundCapper{}

	for _, fl := range p.Lines {
		for _, seg := range fl.Intervals {
			p1, ok1 := recon.Project(view.Cam, seg.P1)
			p2, ok2 := recon.Project(view.Cam, seg.P2)
			if !ok1 || !ok2 {
				continue
			}
			cp := &canvas.Path{}
			cp.MoveTo(p1.X+p.Padding, p1.Y+p.Padding)
			cp.LineTo(p2.X+p.Padding, p2.Y+p.Padding)
			renderer.RenderPath(cp, lineStyle, canvas.Identity)
		}
	}
}
