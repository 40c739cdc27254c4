package recon

import (
	"container/heap"
)

// MatchParams bundles the pairwise-matcher tunables (spec §4.4, §6).
type MatchParams struct {
	EpipolarOverlap float64 // clamped to [0, 0.99]
	KNN             int     // 0 disables kNN truncation
}

func clampMatchParams(p MatchParams) MatchParams {
	if p.EpipolarOverlap < 0 {
		p.EpipolarOverlap = 0
	}
	if p.EpipolarOverlap > 0.99 {
		p.EpipolarOverlap = 0.99
	}
	return p
}

// candidateHeap is a min-heap over Match.OverlapScore, used to keep the
// top-k candidates per source segment without sorting the whole candidate
// list (spec §4.4: "top-k matches per source segment ranked by overlap
// score (max-heap)" -- implemented here as a bounded min-heap, the usual
// idiom for a running top-k).
type candidateHeap []Match

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].OverlapScore < h[j].OverlapScore }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Match)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PairwiseMatch generates candidate 2D<->2D matches from every segment in
// view a to every segment in view b using epipolar-overlap and two-way
// triangulation filtering (spec §4.4). The result is one flat slice that
// holds each source segment's matches in turn, in segment order; each
// segment's matches are truncated to the top KNN by overlap score if
// KNN > 0.
func PairwiseMatch(reg *Registry, aID, bID int, params MatchParams) []Match {
	params = clampMatchParams(params)
	a := reg.Get(aID)
	b := reg.Get(bID)
	if a == nil || b == nil {
		return nil
	}
	f := reg.Fundamental(aID, bID)

	aSegs := a.Segments()
	bSegs := b.Segments()

	var out []Match
	for r, segR := range aSegs {
		h := &candidateHeap{}
		var all []Match

		epi1 := epipolarLine(f, segR.P1)
		epi2 := epipolarLine(f, segR.P2)

		for c, segC := range bSegs {
			targetLine := lineThroughPoints(segC.P1, segC.P2)

			p1prime, ok1 := intersectLines(epi1, targetLine)
			if !ok1 {
				continue
			}
			p2prime, ok2 := intersectLines(epi2, targetLine)
			if !ok2 {
				continue
			}

			overlap := MutualEpipolarOverlap(p1prime, p2prime, segC.P1, segC.P2)
			if overlap <= params.EpipolarOverlap {
				continue
			}

			d1, d2, q1, q2, ok := TwoWayTriangulate(a.Cam, b.Cam, segR.P1, segR.P2, segC.P1, segC.P2)
			if !ok || d1 <= 0 || d2 <= 0 || q1 <= 0 || q2 <= 0 {
				continue
			}

			m := Match{
				SrcCam: aID, SrcSeg: r,
				TgtCam: bID, TgtSeg: c,
				OverlapScore: overlap,
				DepthP1:      d1, DepthP2: d2,
				DepthQ1: q1, DepthQ2: q2,
			}

			if params.KNN > 0 {
				if h.Len() < params.KNN {
					heap.Push(h, m)
				} else if h.Len() > 0 && m.OverlapScore > (*h)[0].OverlapScore {
					heap.Pop(h)
					heap.Push(h, m)
				}
			} else {
				all = append(all, m)
			}
		}

		if params.KNN > 0 {
			out = append(out, ([]Match)(*h)...)
		} else {
			out = append(out, all...)
		}
	}
	return out
}

// MatchAll runs the pairwise matcher over every (view, neighbor) pair that
// has not yet been matched in either direction, in view-registration order
// (spec §4.4, §5). It returns the raw candidate matches grouped by source
// camera id; the caller (the scorer) is responsible for filtering,
// aggregation, and inverse materialization.
func MatchAll(reg *Registry, neighbors map[int][]int, params MatchParams) map[int][]Match {
	matched := make(map[[2]int]bool)
	result := make(map[int][]Match)

	for _, a := range reg.Order() {
		for _, b := range neighbors[a] {
			if matched[[2]int{a, b}] || matched[[2]int{b, a}] {
				continue
			}
			matched[[2]int{a, b}] = true
			matched[[2]int{b, a}] = true

			candidates := PairwiseMatch(reg, a, b, params)
			if len(candidates) == 0 {
				continue
			}
			result[a] = append(result[a], candidates...)
		}
	}
	return result
}

// candidatesForSegment filters a flat match list down to those originating
// from the given source segment index, preserving order.
func candidatesForSegment(matches []Match, segIdx int) []Match {
	var out []Match
	for _, m := range matches {
		if m.SrcSeg == segIdx {
			out = append(out, m)
		}
	}
	return out
}
