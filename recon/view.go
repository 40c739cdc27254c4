package recon

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// View is the per-camera state owned by the Registry (spec §3, §4.2): its
// calibrated pose, stored 2D segments, running median depth, spatial
// regularizer, and per-segment collinearity groups. A View is immutable
// after registration except for its median depth and regularizer, both of
// which are updated under the view's own lock.
type View struct {
	CamID  int
	Cam    Camera
	Width  int
	Height int

	mu          sync.RWMutex
	segments    []Segment2DGeom
	medianDepth float64
	k           float64 // spatial regularizer, radians-per-unit-depth (or fixed world units)
	fixedK      bool    // true if k is a fixed world-space regularizer (sigma_p < 0)
	collinear   [][]int // collinear[i] = indices of segments collinear with segment i

	// explicitNeighbors, if non-nil, overrides tie-point based selection
	// (spec §4.3). tiePoints is the set of world-point ids this view
	// observed, used when explicitNeighbors is nil.
	explicitNeighbors []int
	tiePoints         map[int]struct{}

	processed bool // true once the matcher has processed this view as source (spec §4.5, §5)

	minProjLen float64 // minimum projected 2D line length (px) for projected_long_enough, spec §4.7
}

// DefaultMinProjectedLength is the default per-view minimum projected line
// length, in pixels, used by the final-interval filter (spec §4.7).
const DefaultMinProjectedLength = 10.0

// ProjectedLongEnough reports whether seg, forward-projected into this
// view's camera, spans at least the view's minimum projected line length
// (spec §4.7's "projected_long_enough" predicate). A segment with either
// endpoint behind the camera is rejected.
func (v *View) ProjectedLongEnough(seg Segment3D) bool {
	p1, ok1 := Project(v.Cam, seg.P1)
	p2, ok2 := Project(v.Cam, seg.P2)
	if !ok1 || !ok2 {
		return false
	}
	minLen := v.minProjLen
	if minLen <= 0 {
		minLen = DefaultMinProjectedLength
	}
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	return math.Hypot(dx, dy) >= minLen
}

// SetMinProjectedLength overrides the default minimum projected line
// length for this view.
func (v *View) SetMinProjectedLength(px float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.minProjLen = px
}

// Segments returns a snapshot copy of the view's 2D segments.
func (v *View) Segments() []Segment2DGeom {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Segment2DGeom, len(v.segments))
	copy(out, v.segments)
	return out
}

// Segment returns the geometry of segment i.
func (v *View) Segment(i int) Segment2DGeom {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.segments[i]
}

// NumSegments returns the number of stored 2D segments.
func (v *View) NumSegments() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.segments)
}

// MedianDepth returns the view's current median-depth estimate.
func (v *View) MedianDepth() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.medianDepth
}

// K returns the view's current spatial regularizer.
func (v *View) K() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.k
}

// Collinear returns the collinearity group for segment i (indices of other
// segments in this view considered collinear with i within tau_c).
func (v *View) Collinear(i int) []int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i < 0 || i >= len(v.collinear) {
		return nil
	}
	out := make([]int, len(v.collinear[i]))
	copy(out, v.collinear[i])
	return out
}

// Processed reports whether this view has been processed as a matching
// source (spec §4.5, §5: the flag transitions monotonically false->true).
func (v *View) Processed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.processed
}

// markProcessed transitions the view to processed. Safe to call more than
// once; only the first call has effect.
func (v *View) markProcessed() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.processed = true
}

// UpdateMedianDepth replaces the median-depth estimate with the median of
// the given depths, using the sorted-middle-element convention (no
// interpolation on even lengths) preserved from the source per spec §9.
func (v *View) UpdateMedianDepth(depths []float64) {
	if len(depths) == 0 {
		return
	}
	sorted := make([]float64, len(depths))
	copy(sorted, depths)
	sort.Float64s(sorted)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.medianDepth = sorted[len(sorted)/2]
}

// ComputeSpatialRegularizer sets k from a pixel-space sigma (sigma_p_px, in
// pixels, minimum 0.1px), divided by the view's focal length (spec §4.2):
// k is per unit depth, so the view's median depth does not enter it.
func (v *View) ComputeSpatialRegularizer(sigmaPPx float64) {
	if sigmaPPx < 0.1 {
		sigmaPPx = 0.1
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	focal := v.Cam.K.At(0, 0)
	if focal < epsGeom {
		focal = 1
	}
	depth := v.medianDepth
	if depth < epsGeom {
		depth = 1
	}
	// sigma_world ~= depth * k_pixel_ratio; k is radians-per-unit-depth so
	// that depth*k approximates the positional uncertainty in world units.
	v.k = sigmaPPx / focal
	v.fixedK = false
}

// UpdateK sets a fixed world-space regularizer (sigma_p_world, in world
// units, e.g. meters), used when the engine's sigma_p convention selects
// the fixed branch (negative sigma_p input, spec §4.2).
func (v *View) UpdateK(sigmaPWorld float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.k = math.Abs(sigmaPWorld)
	v.fixedK = true
}

// EffectiveSigma returns the positional uncertainty at the given depth:
// depth*k for a pixel-space regularizer, or just k for a fixed world-space
// regularizer.
func (v *View) EffectiveSigma(depth float64) float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.fixedK {
		return v.k
	}
	return depth * v.k
}

// Registry owns the set of registered views keyed by caller-supplied
// camera id. Concurrent Add calls are safe: a two-phase reservation
// prevents duplicate id admission, and publication of the view is atomic
// (spec §4.2, §5).
type Registry struct {
	reserveMu sync.Mutex
	publishMu sync.Mutex

	reserved map[int]struct{}
	views    map[int]*View
	order    []int // registration order, for deterministic processing (spec §4.5)

	fMu    sync.Mutex
	fCache map[[2]int]Mat3
}

// NewRegistry creates an empty view registry.
func NewRegistry() *Registry {
	return &Registry{
		reserved: make(map[int]struct{}),
		views:    make(map[int]*View),
		fCache:   make(map[[2]int]Mat3),
	}
}

// AddParams bundles the arguments to Add (spec §4.2, §6).
type AddParams struct {
	CamID             int
	Cam               Camera
	Width, Height     int
	MedianDepth       float64
	Segments          []Segment2DGeom
	ExplicitNeighbors []int   // mutually exclusive with TiePoints
	TiePoints         []int   // world-point ids observed by this view
	CollinearTauPx    float64 // pixel threshold for pre-computing collinearity groups; 0 disables
}

// Add registers a new view under cam_id. Duplicate ids are rejected (no
// state mutation, logged by the caller); an empty tie-point/neighbor list
// is also rejected (spec §7).
func (r *Registry) Add(p AddParams) error {
	if len(p.ExplicitNeighbors) == 0 && len(p.TiePoints) == 0 {
		return fmt.Errorf("view %d: empty tie-point/neighbor list", p.CamID)
	}

	r.reserveMu.Lock()
	if _, dup := r.reserved[p.CamID]; dup {
		r.reserveMu.Unlock()
		return fmt.Errorf("view %d: duplicate camera id", p.CamID)
	}
	r.reserved[p.CamID] = struct{}{}
	r.reserveMu.Unlock()

	v := &View{
		CamID:       p.CamID,
		Cam:         p.Cam,
		Width:       p.Width,
		Height:      p.Height,
		segments:    append([]Segment2DGeom(nil), p.Segments...),
		medianDepth: p.MedianDepth,
	}
	if p.ExplicitNeighbors != nil {
		v.explicitNeighbors = append([]int(nil), p.ExplicitNeighbors...)
	}
	if len(p.TiePoints) > 0 {
		v.tiePoints = make(map[int]struct{}, len(p.TiePoints))
		for _, id := range p.TiePoints {
			v.tiePoints[id] = struct{}{}
		}
	}
	if p.CollinearTauPx > 0 {
		v.collinear = computeCollinearGroups(v.segments, p.CollinearTauPx)
	}

	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	r.views[p.CamID] = v
	r.order = append(r.order, p.CamID)
	return nil
}

// Get returns the view for cam_id, or nil if not registered.
func (r *Registry) Get(camID int) *View {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	return r.views[camID]
}

// Len returns the number of registered views.
func (r *Registry) Len() int {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	return len(r.views)
}

// Order returns camera ids in registration order (spec §4.5, §5).
func (r *Registry) Order() []int {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every registered view, in registration order.
func (r *Registry) All() []*View {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	out := make([]*View, 0, len(r.views))
	for _, id := range r.order {
		out = append(out, r.views[id])
	}
	return out
}

// Fundamental returns F(src,tgt), computing and caching it on first use.
// Reverse lookups return the cached transpose (spec §3, §4.1).
func (r *Registry) Fundamental(srcID, tgtID int) Mat3 {
	r.fMu.Lock()
	defer r.fMu.Unlock()

	if f, ok := r.fCache[[2]int{srcID, tgtID}]; ok {
		return f
	}
	if f, ok := r.fCache[[2]int{tgtID, srcID}]; ok {
		t := f.Transpose()
		r.fCache[[2]int{srcID, tgtID}] = t
		return t
	}

	src := r.views[srcID]
	tgt := r.views[tgtID]
	f := FundamentalMatrix(src.Cam, tgt.Cam)
	r.fCache[[2]int{srcID, tgtID}] = f
	return f
}

// computeCollinearGroups groups segment indices whose endpoints are within
// tauPx pixels of lying on a shared line (spec §3's per-segment
// collinearity list). Two segments are collinear when each segment's
// endpoints lie within tauPx of the infinite line through the other.
func computeCollinearGroups(segs []Segment2DGeom, tauPx float64) [][]int {
	groups := make([][]int, len(segs))
	for i := range segs {
		for j := range segs {
			if i == j {
				continue
			}
			if segmentsCollinear(segs[i], segs[j], tauPx) {
				groups[i] = append(groups[i], j)
			}
		}
	}
	return groups
}

func segmentsCollinear(a, b Segment2DGeom, tauPx float64) bool {
	return pointLineDist2D(b.P1, a) <= tauPx && pointLineDist2D(b.P2, a) <= tauPx
}

// pointLineDist2D returns the perpendicular distance from p to the
// infinite line through seg's endpoints.
func pointLineDist2D(p Point2, seg Segment2DGeom) float64 {
	dx := seg.P2.X - seg.P1.X
	dy := seg.P2.Y - seg.P1.Y
	length := math.Hypot(dx, dy)
	if length < epsGeom {
		return math.Hypot(p.X-seg.P1.X, p.Y-seg.P1.Y)
	}
	// Cross product magnitude / length = perpendicular distance.
	cross := (p.X-seg.P1.X)*dy - (p.Y-seg.P1.Y)*dx
	return math.Abs(cross) / length
}
