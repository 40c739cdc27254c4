package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kwv/line3d/recon"
	"github.com/kwv/line3d/recon/config"
	"github.com/kwv/line3d/recon/events"
	"github.com/kwv/line3d/recon/export"
	"github.com/kwv/line3d/recon/refine"
)

// App wraps one Engine and the parameters driving it across a sequence of
// CLI invocations, mirroring the teacher's App: flags are parsed in main
// and applied here, every other method is pure orchestration over the
// engine and export packages.
type App struct {
	Engine *recon.Engine
	Params config.Params
}

// NewApp creates an App with default parameters and a log-backed event
// sink, generalizing the teacher's NewApp/NewStateTracker pairing.
func NewApp() *App {
	return &App{
		Engine: recon.NewEngine(),
		Params: config.DefaultParams(),
	}
}

// LoadParams replaces a.Params from a YAML file, clamped per spec §6.
// Missing files are not an error: the CLI falls back to DefaultParams, the
// same "optional config" behavior as the teacher's --render mode.
func (a *App) LoadParams(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.Printf("no config file at %s, using defaults", path)
			return nil
		}
		return err
	}
	params, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	a.Params = *params
	log.Printf("loaded config from %s", path)
	return nil
}

// ConfigureMQTT wires an MQTTBridge into the engine's event sink when a
// broker is configured, fanning events to both the bridge and the log
// (mirrors the teacher's InitMQTT + Publisher pairing in runService).
func (a *App) ConfigureMQTT() error {
	if a.Params.MQTTBroker == "" {
		return nil
	}
	client, err := events.Connect(a.Params.MQTTBroker, "line3d")
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	bridge := events.NewMQTTBridge(client, "line3d")
	a.Engine.Sink = events.MultiSink{events.LogSink{}, bridge}
	return nil
}

// sceneFile is the on-disk JSON scene description the CLI registers
// against the engine: one entry per calibrated view, plus its pixel-space
// segments (spec §6's add_image arguments, serialized).
type sceneFile struct {
	Views []sceneView `json:"views"`
}

type sceneView struct {
	CamID          int          `json:"cam_id"`
	Width          int          `json:"width"`
	Height         int          `json:"height"`
	MedianDepth    float64      `json:"median_depth"`
	K              [9]float64   `json:"k"`
	R              [9]float64   `json:"r"`
	T              [3]float64   `json:"t"`
	TiePoints      []int        `json:"tie_points,omitempty"`
	Neighbors      []int        `json:"neighbors,omitempty"`
	Segments       [][4]float64 `json:"segments"`
	CollinearTauPx float64      `json:"collinear_tau_px,omitempty"`
}

func mat3From(v [9]float64) recon.Mat3 {
	return recon.NewMat3(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8])
}

// LoadScene parses a scene JSON file and registers every view with the
// engine via AddImage, in file order (spec §4.2's "registration order").
func (a *App) LoadScene(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading scene file: %w", err)
	}
	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return fmt.Errorf("parsing scene file: %w", err)
	}

	for _, v := range scene.Views {
		segs := make([]recon.Segment2DGeom, len(v.Segments))
		for i, s := range v.Segments {
			segs[i] = recon.Segment2DGeom{P1: recon.Point2{X: s[0], Y: s[1]}, P2: recon.Point2{X: s[2], Y: s[3]}}
		}

		p := recon.AddImageParams{
			CamID: v.CamID,
			Cam: recon.Camera{
				K: mat3From(v.K),
				R: mat3From(v.R),
				T: recon.Point3{X: v.T[0], Y: v.T[1], Z: v.T[2]},
			},
			Width:                  v.Width,
			Height:                 v.Height,
			MedianDepth:            v.MedianDepth,
			TiePoints:              v.TiePoints,
			Neighbors:              v.Neighbors,
			Segments:               segs,
			CollinearTauPx:         v.CollinearTauPx,
			NeighborsByWorldpoints: a.Params.NeighborsByWorldpoints,
		}
		if err := a.Engine.AddImage(p); err != nil {
			log.Printf("skipping view %d: %v", v.CamID, err)
		}
	}
	log.Printf("registered %d of %d views from %s", a.Engine.Reg.Len(), len(scene.Views), path)
	return nil
}

// RunMatch runs the matching phase over the currently registered views.
func (a *App) RunMatch() {
	a.Engine.Match(recon.MatchInput{
		SigmaP:      a.Params.SigmaP,
		SigmaA:      a.Params.SigmaA,
		NumNeighbor: a.Params.NumNeighbor,
		EpiOverlap:  a.Params.EpiOverlap,
		MinBaseline: a.Params.MinBaseline,
		KNN:         a.Params.KNN,
	})
}

// RunReconstruct runs the reconstruction phase, using refine.NoopRefiner
// when the config's refine flag is set (spec §7's missing-backend
// downgrade, made explicit at the CLI boundary rather than left to the
// engine's internal default).
func (a *App) RunReconstruct() {
	var refiner recon.Refiner
	if a.Params.Refine {
		refiner = refine.NoopRefiner{}
	}
	a.Engine.Reconstruct(recon.ReconstructInput{
		VisibilityT:   a.Params.VisibilityT,
		Diffuse:       a.Params.Diffuse,
		TauC:          a.Params.TauC,
		Refine:        refiner,
		MaxRefineIter: a.Params.MaxRefineIter,
	})
}

// Export writes the current final line set to path in the given format
// (stl, obj, or txt per spec §6).
func (a *App) Export(format, path string) error {
	lines := a.Engine.GetLines()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(format) {
	case "stl":
		return export.WriteSTL(f, lines)
	case "obj":
		return export.WriteOBJ(f, lines)
	case "txt":
		return export.WriteTXT(f, lines, a.Engine.Reg)
	default:
		return fmt.Errorf("unknown export format %q (want stl, obj, or txt)", format)
	}
}

// RenderPreview writes an SVG or PNG reprojection preview of the current
// final line set into refCamID's view.
func (a *App) RenderPreview(path string, refCamID int, format string) error {
	lines := a.Engine.GetLines()
	preview := export.NewPreview(a.Engine.Reg, lines)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating preview file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(format) {
	case "svg":
		return preview.RenderToSVG(f, refCamID)
	case "png":
		return preview.RenderToPNG(f, refCamID)
	default:
		return fmt.Errorf("unknown preview format %q (want svg or png)", format)
	}
}

// OutputFilename derives the spec §6 filename template for the given
// reference view width, using the app's current parameters.
func (a *App) OutputFilename(width int) string {
	return config.FilenameTemplate(a.Params, width)
}
