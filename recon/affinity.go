package recon

import "sync"

// AffinityGraph is the symmetric sparse affinity graph over scored 2D
// segments (spec §3, §4.6). Local ids are densely allocated 0..N-1 on
// first use. Id allocation, the used-set, and edge growth are each
// guarded by their own lock (spec §5), matching the teacher's
// one-mutex-per-shared-map discipline (mesh/state.go's StateTracker).
type AffinityGraph struct {
	idMu  sync.Mutex
	idOf  map[Segment2D]int
	segOf []Segment2D

	usedMu sync.Mutex
	used   map[[2]Segment2D]bool

	edgeMu sync.Mutex
	edges  []AffinityEdge
}

// NewAffinityGraph creates an empty affinity graph.
func NewAffinityGraph() *AffinityGraph {
	return &AffinityGraph{
		idOf: make(map[Segment2D]int),
		used: make(map[[2]Segment2D]bool),
	}
}

// LocalID returns the dense local id for seg, allocating a fresh one on
// first use.
func (g *AffinityGraph) LocalID(seg Segment2D) int {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	if id, ok := g.idOf[seg]; ok {
		return id
	}
	id := len(g.segOf)
	g.idOf[seg] = id
	g.segOf = append(g.segOf, seg)
	return id
}

// Segment returns the Segment2D for local id i.
func (g *AffinityGraph) Segment(i int) Segment2D {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	return g.segOf[i]
}

// NumVertices returns the number of distinct segments seen.
func (g *AffinityGraph) NumVertices() int {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	return len(g.segOf)
}

// usedKey canonicalizes an unordered pair for the symmetric used-set.
func usedKey(a, b Segment2D) [2]Segment2D {
	if a.CamID < b.CamID || (a.CamID == b.CamID && a.SegID <= b.SegID) {
		return [2]Segment2D{a, b}
	}
	return [2]Segment2D{b, a}
}

// markUsed attempts to mark the pair (a,b) as used. It returns true if
// this call performed the marking (the pair was not already used).
func (g *AffinityGraph) markUsed(a, b Segment2D) bool {
	g.usedMu.Lock()
	defer g.usedMu.Unlock()
	key := usedKey(a, b)
	if g.used[key] {
		return false
	}
	g.used[key] = true
	return true
}

// addEdges appends a batch of edges under the edge-list lock. Edge order
// within the list is not observable externally (spec §5).
func (g *AffinityGraph) addEdges(edges []AffinityEdge) {
	if len(edges) == 0 {
		return
	}
	g.edgeMu.Lock()
	defer g.edgeMu.Unlock()
	g.edges = append(g.edges, edges...)
}

// Edges returns a snapshot copy of the edge list.
func (g *AffinityGraph) Edges() []AffinityEdge {
	g.edgeMu.Lock()
	defer g.edgeMu.Unlock()
	out := make([]AffinityEdge, len(g.edges))
	copy(out, g.edges)
	return out
}

// affinityCollinearWeight is the weight assigned to same-view collinear
// extension edges (spec §4.6): these segments are collinear by
// construction, so they receive a weight at the top of the [0,1]
// similarity range rather than a recomputed kernel value.
const affinityCollinearWeight = 1.0

// BuildAffinity builds the affinity graph from the estimates table (spec
// §4.6). Each estimate's own match list is fanned out over worker
// goroutines with per-worker local edge buffers merged into the shared
// graph at the end (spec §5's preferred producer pattern), since
// estimates from different source segments never touch the same used-set
// entries in practice but may race on local-id allocation without the
// graph's internal locks.
func BuildAffinity(reg *Registry, result ScoreResult, minAffinity, tauC float64) *AffinityGraph {
	graph := NewAffinityGraph()

	type task struct {
		seg Segment2D
		est Estimated3D
	}
	tasks := make([]task, 0, len(result.Estimates))
	for seg, est := range result.Estimates {
		tasks = append(tasks, task{seg: seg, est: est})
	}

	var wg sync.WaitGroup
	workers := 8
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers == 0 {
		return graph
	}
	chunks := chunkTasks(len(tasks), workers)

	for _, c := range chunks {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, t := range tasks[c[0]:c[1]] {
				buildAffinityForEstimate(reg, graph, result, t.seg, t.est, minAffinity, tauC)
			}
		}()
	}
	wg.Wait()

	return graph
}

func chunkTasks(n, workers int) [][2]int {
	if workers <= 0 {
		return nil
	}
	size := (n + workers - 1) / workers
	var chunks [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

func buildAffinityForEstimate(reg *Registry, graph *AffinityGraph, result ScoreResult, seg Segment2D, est Estimated3D, minAffinity, tauC float64) {
	srcView := reg.Get(seg.CamID)
	if srcView == nil {
		return
	}
	srcSeg := srcView.Segment(seg.SegID)
	k := srcView.K()

	candidates := result.Candidates[seg]
	sourceCollinearDone := false

	for _, mp := range candidates {
		tPrime := mp.TargetSeg()
		if !graph.markUsed(seg, tPrime) {
			continue
		}

		w := sim3D(srcView.Cam, srcSeg, k, result.SigmaA, est.Best, mp)
		if w <= minAffinity {
			continue
		}

		i1 := graph.LocalID(seg)
		i2 := graph.LocalID(tPrime)
		graph.addEdges([]AffinityEdge{{I: i1, J: i2, Weight: w}, {I: i2, J: i1, Weight: w}})

		if tauC > 0 {
			tView := reg.Get(tPrime.CamID)
			if tView != nil {
				for _, cj := range tView.Collinear(tPrime.SegID) {
					collSeg := Segment2D{CamID: tPrime.CamID, SegID: cj}
					if !graph.markUsed(seg, collSeg) {
						continue
					}
					i3 := graph.LocalID(collSeg)
					graph.addEdges([]AffinityEdge{{I: i1, J: i3, Weight: affinityCollinearWeight}, {I: i3, J: i1, Weight: affinityCollinearWeight}})
				}
			}
		}
	}

	if tauC > 0 && !sourceCollinearDone {
		for _, cj := range srcView.Collinear(seg.SegID) {
			collSeg := Segment2D{CamID: seg.CamID, SegID: cj}
			if !graph.markUsed(seg, collSeg) {
				continue
			}
			i1 := graph.LocalID(seg)
			i4 := graph.LocalID(collSeg)
			graph.addEdges([]AffinityEdge{{I: i1, J: i4, Weight: affinityCollinearWeight}, {I: i4, J: i1, Weight: affinityCollinearWeight}})
		}
		sourceCollinearDone = true
	}
}
