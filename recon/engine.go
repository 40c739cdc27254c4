package recon

import (
	"sync"

	"github.com/kwv/line3d/recon/events"
)

// Refiner adjusts a set of fitted line clusters in place (spec §4.8). The
// core treats refinement as an external collaborator: input is the view
// registry plus the current clusters, output is the same clusters with
// endpoints possibly moved. Implementations must not change cluster
// membership.
type Refiner interface {
	Refine(reg *Registry, clusters []LineCluster3D, maxIter int) ([]LineCluster3D, error)
}

// Engine owns the full pipeline state for one reconstruction session: the
// view registry plus everything derived from it by Match and Reconstruct
// (spec §9: "a single engine value whose lifetime brackets the pipeline").
// Match and Reconstruct each discard and rebuild their own derived state on
// every call (spec §3's Lifecycle clause). Match also clears Reconstruct's
// state (affinity graph, clusters, final lines), which it makes stale;
// Reconstruct leaves Match's state in place.
type Engine struct {
	Reg *Registry

	// Detector, if set, is consulted by AddImage when no segments are
	// supplied directly (spec §6's external-detector collaborator).
	Detector Detector

	// Sink receives warning and progress events (spec §5, §7). NewEngine
	// sets it to events.LogSink; events are dropped while it is nil.
	Sink events.Sink

	mu        sync.RWMutex
	neighbors map[int][]int
	matches   map[int][]Match
	result    ScoreResult
	graph     *AffinityGraph
	clusters  [][]Segment2D
	final     []FinalLine3D
}

// NewEngine creates an engine over a fresh, empty view registry.
func NewEngine() *Engine {
	return &Engine{Reg: NewRegistry(), Sink: events.LogSink{}}
}

func (e *Engine) emit(ev events.Event) {
	if e.Sink != nil {
		e.Sink.Emit(ev)
	}
}

// Detector produces pixel-space line segments for an image (spec §6).
// recon/detect provides the convenience wrapper around an external LSD
// binary; callers may supply any implementation, or none (segments must
// then be supplied directly to AddImage).
type Detector interface {
	Detect(image []byte, width, height int) ([]Segment2DGeom, error)
}

// AddImageParams bundles the arguments to AddImage (spec §6's
// `add_image(cam_id, image, K, R, t, median_depth, tie_or_neighbors,
// segments?)`).
type AddImageParams struct {
	CamID          int
	Image          []byte // consulted only if Segments is nil and a Detector is configured
	Cam            Camera
	Width, Height  int
	MedianDepth    float64
	TiePoints      []int // used when NeighborsByWorldpoints is true
	Neighbors      []int // used when NeighborsByWorldpoints is false
	Segments       []Segment2DGeom
	CollinearTauPx float64

	// NeighborsByWorldpoints selects which of TiePoints/Neighbors this view
	// registers under (spec §6's engine-level flag).
	NeighborsByWorldpoints bool
}

// AddImage registers a new view, running the external detector if no
// segments were supplied directly (spec §4.2, §6). Views are created here
// and destroyed only with the engine.
func (e *Engine) AddImage(p AddImageParams) error {
	segments := p.Segments
	if segments == nil {
		if e.Detector == nil {
			e.emit(events.Event{Kind: events.Warning, Phase: "add_image", Message: "no segments and no detector configured"})
			return errNoSegments(p.CamID)
		}
		detected, err := e.Detector.Detect(p.Image, p.Width, p.Height)
		if err != nil {
			return err
		}
		segments = detected
	}

	add := AddParams{
		CamID:          p.CamID,
		Cam:            p.Cam,
		Width:          p.Width,
		Height:         p.Height,
		MedianDepth:    p.MedianDepth,
		Segments:       segments,
		CollinearTauPx: p.CollinearTauPx,
	}
	if p.NeighborsByWorldpoints {
		add.TiePoints = p.TiePoints
	} else {
		add.ExplicitNeighbors = p.Neighbors
	}

	if err := e.Reg.Add(add); err != nil {
		e.emit(events.Event{Kind: events.Warning, Phase: "add_image", Message: err.Error()})
		return err
	}
	return nil
}

// MatchInput bundles the arguments to Match (spec §6's `match(σ_p, σ_a,
// N_neighbors, epi_overlap, min_baseline, kNN)`).
type MatchInput struct {
	SigmaP      float64 // negative: fixed world-space (meters); non-negative: pixel-space
	SigmaA      float64
	NumNeighbor int
	EpiOverlap  float64
	MinBaseline float64
	KNN         int
}

// Match runs §4.3-§4.5: regularizer computation, neighbor selection,
// pairwise matching, and scoring. Previous matches are discarded (spec §3's
// Lifecycle clause).
func (e *Engine) Match(in MatchInput) {
	e.computeRegularizers(in.SigmaP)

	neighbors := SelectNeighbors(e.Reg, NeighborParams{
		NumNeighbors: in.NumNeighbor,
		MinBaseline:  in.MinBaseline,
	})

	matches := MatchAll(e.Reg, neighbors, MatchParams{
		EpipolarOverlap: in.EpiOverlap,
		KNN:             in.KNN,
	})

	totalMatches := 0
	for _, ms := range matches {
		totalMatches += len(ms)
	}
	if totalMatches == 0 {
		e.emit(events.Event{Kind: events.Warning, Phase: "match", Message: "no candidate matches produced"})
	}

	result := ScoreAll(e.Reg, matches, ScoreParams{SigmaA: in.SigmaA})

	e.mu.Lock()
	e.neighbors = neighbors
	e.matches = matches
	e.result = result
	// Downstream reconstruction state is now stale.
	e.graph = nil
	e.clusters = nil
	e.final = nil
	e.mu.Unlock()

	e.emit(events.Event{Kind: events.Progress, Phase: "match", Message: "matching complete", Count: totalMatches})
}

// computeRegularizers fans the per-view regularizer update out across
// goroutines (spec §5: views are a natural parallel axis during
// regularizer computation).
func (e *Engine) computeRegularizers(sigmaP float64) {
	views := e.Reg.All()
	var wg sync.WaitGroup
	for _, v := range views {
		v := v
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sigmaP < 0 {
				v.UpdateK(sigmaP)
			} else {
				v.ComputeSpatialRegularizer(sigmaP)
			}
		}()
	}
	wg.Wait()
}

// ReconstructInput bundles the arguments to Reconstruct (spec §6's
// `reconstruct(visibility_t, diffuse?, τ_c, refine?, max_refine_iter)`).
type ReconstructInput struct {
	VisibilityT   int
	Diffuse       bool // accepted for interface parity; diffusion pre-clustering is an optional step the spec leaves unspecified beyond its contract (§9) and is not implemented here
	TauC          float64
	Refine        Refiner // nil downgrades to a no-op refiner (spec §7)
	MaxRefineIter int
}

// Reconstruct runs §4.6-§4.7 and an optional refinement pass. Affinity,
// clusters, and final lines are rebuilt from scratch (spec §3's Lifecycle
// clause); Match's output, including the estimates table, is reused, not
// rebuilt.
func (e *Engine) Reconstruct(in ReconstructInput) {
	e.mu.RLock()
	result := e.result
	e.mu.RUnlock()

	minAffinity := 0.2
	graph := BuildAffinity(e.Reg, result, minAffinity, in.TauC)

	rawClusters := ClusterAffinity(graph)
	visible := VisibilityFilter(rawClusters, in.VisibilityT)

	if len(rawClusters) == 0 {
		e.emit(events.Event{Kind: events.Warning, Phase: "reconstruct", Message: "no clusters produced"})
	}

	lineClusters := e.fitClusters(visible, result.Estimates)

	refiner := in.Refine
	if refiner == nil {
		refiner = noopRefiner{}
	}
	refined, err := refiner.Refine(e.Reg, lineClusters, in.MaxRefineIter)
	if err != nil {
		e.emit(events.Event{Kind: events.Warning, Phase: "reconstruct", Message: "refinement failed, using unrefined clusters: " + err.Error()})
		refined = lineClusters
	}

	final := e.extractFinalLines(refined)

	e.mu.Lock()
	e.graph = graph
	e.clusters = visible
	e.final = final
	e.mu.Unlock()

	e.emit(events.Event{Kind: events.Progress, Phase: "reconstruct", Message: "reconstruction complete", Count: len(final)})
}

// fitClusters fans cluster fitting out across goroutines (spec §5: clusters
// are a natural parallel axis during fitting).
func (e *Engine) fitClusters(clusters [][]Segment2D, estimates map[Segment2D]Estimated3D) []LineCluster3D {
	type slot struct {
		line LineCluster3D
		ok   bool
	}
	slots := make([]slot, len(clusters))

	var wg sync.WaitGroup
	for i, cluster := range clusters {
		i, cluster := i, cluster
		wg.Add(1)
		go func() {
			defer wg.Done()
			line, ok := FitLine(e.Reg, cluster, estimates)
			slots[i] = slot{line: line, ok: ok}
		}()
	}
	wg.Wait()

	out := make([]LineCluster3D, 0, len(clusters))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.line)
		}
	}
	return out
}

// extractFinalLines fans interval extraction out across goroutines and
// applies the final projected_long_enough filter (spec §4.7).
func (e *Engine) extractFinalLines(clusters []LineCluster3D) []FinalLine3D {
	out := make([]FinalLine3D, len(clusters))

	var wg sync.WaitGroup
	for i, lc := range clusters {
		i, lc := i, lc
		wg.Add(1)
		go func() {
			defer wg.Done()
			centroid := lc.Line.P1.Add(lc.Line.P2).Scale(0.5)
			direction := lc.Line.Direction()
			intervals := ExtractCollinearIntervals(e.Reg, lc, centroid, direction)

			refView := e.Reg.Get(lc.Reference.CamID)
			var kept []Segment3D
			for _, iv := range intervals {
				if refView == nil || refView.ProjectedLongEnough(iv) {
					kept = append(kept, iv)
				}
			}
			out[i] = FinalLine3D{Cluster: lc, Intervals: kept}
		}()
	}
	wg.Wait()
	return out
}

// GetLines returns the current final line set from the most recent
// Reconstruct call (spec §6's `get_lines() -> [FinalLine3D]`).
func (e *Engine) GetLines() []FinalLine3D {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]FinalLine3D, len(e.final))
	copy(out, e.final)
	return out
}

type noopRefiner struct{}

func (noopRefiner) Refine(_ *Registry, clusters []LineCluster3D, _ int) ([]LineCluster3D, error) {
	return clusters, nil
}

type noSegmentsError struct{ camID int }

func (e noSegmentsError) Error() string {
	return "view has no segments and no detector is configured"
}

func errNoSegments(camID int) error {
	return noSegmentsError{camID: camID}
}
