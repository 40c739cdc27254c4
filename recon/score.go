package recon

import "math"

// ScoreParams bundles the scorer tunables (spec §4.5, §6). MinSim3D,
// MinScore3D, and MinBestScore3D are small positive constants chosen by
// this implementation, per spec §6's "chosen by the implementation"
// clause.
type ScoreParams struct {
	SigmaA         float64 // clamped to [0, 90] degrees
	MinSim3D       float64
	MinScore3D     float64
	MinBestScore3D float64
}

// DefaultScoreThresholds returns the implementation-chosen small positive
// constants for MinSim3D, MinScore3D, and MinBestScore3D.
func DefaultScoreThresholds() (minSim3D, minScore3D, minBestScore3D float64) {
	return 0.1, 0.3, 0.5
}

func clampScoreParams(p ScoreParams) ScoreParams {
	if p.SigmaA < 0 {
		p.SigmaA = 0
	}
	if p.SigmaA > 90 {
		p.SigmaA = 90
	}
	if p.MinSim3D <= 0 {
		p.MinSim3D, _, _ = DefaultScoreThresholds()
	}
	if p.MinScore3D <= 0 {
		_, p.MinScore3D, _ = DefaultScoreThresholds()
	}
	if p.MinBestScore3D <= 0 {
		_, _, p.MinBestScore3D = DefaultScoreThresholds()
	}
	return p
}

// ScoreResult is the output of ScoreAll: the estimates table, the retained
// (post-filter) candidate lists per source segment for the affinity
// builder, and the set of clusterable segments (spec §3, §4.5, §4.6).
type ScoreResult struct {
	Estimates   map[Segment2D]Estimated3D
	Candidates  map[Segment2D][]Match
	Clusterable map[Segment2D]bool
	SigmaA      float64 // the sigma_a used to produce this result, reused by the affinity builder
}

// backProject back-projects a match's source-side endpoints into a
// Segment3D using the source camera's rays and the match's src-side
// depths (spec §3, §4.5).
func backProject(cam Camera, srcSeg Segment2DGeom, m Match) Segment3D {
	r1 := NormalizedRay(cam, srcSeg.P1)
	r2 := NormalizedRay(cam, srcSeg.P2)
	c := cam.Center()
	return Segment3D{
		P1: c.Add(r1.Scale(m.DepthP1)),
		P2: c.Add(r2.Scale(m.DepthP2)),
	}
}

// sim3D computes the 3D-consistency similarity between two candidate
// matches originating from the same source segment (spec §4.5).
func sim3D(srcCam Camera, srcSeg Segment2DGeom, k, sigmaA float64, m, mPrime Match) float64 {
	geomM := backProject(srcCam, srcSeg, m)
	geomMP := backProject(srcCam, srcSeg, mPrime)

	angle := AngleBetweenSegments(geomM.Direction(), geomMP.Direction(), true)
	simA := math.Exp(-(angle * angle) / (2 * sigmaA * sigmaA))

	d1, d2 := m.DepthP1, m.DepthP2
	dd1 := d1 - mPrime.DepthP1
	dd2 := d2 - mPrime.DepthP2
	sigma1 := d1 * k
	sigma2 := d2 * k
	if sigma1 < epsGeom {
		sigma1 = epsGeom
	}
	if sigma2 < epsGeom {
		sigma2 = epsGeom
	}
	simP1 := math.Exp(-(dd1 * dd1) / (2 * sigma1 * sigma1))
	simP2 := math.Exp(-(dd2 * dd2) / (2 * sigma2 * sigma2))
	simP := math.Min(simP1, simP2)

	return math.Min(simA, simP)
}

// score3DOf aggregates sim3D across every other candidate in the same
// segment's list, keeping only the strongest similarity per distinct
// target camera before summing (spec §4.5: "if a stronger sim from the
// same target cam is seen, replace").
func score3DOf(srcCam Camera, srcSeg Segment2DGeom, k, sigmaA, minSim3D float64, m Match, all []Match) float64 {
	bestPerCam := make(map[int]float64)
	for _, mp := range all {
		if mp.TgtCam == m.TgtCam {
			continue
		}
		s := sim3D(srcCam, srcSeg, k, sigmaA, m, mp)
		if s < minSim3D {
			continue
		}
		if s > bestPerCam[mp.TgtCam] {
			bestPerCam[mp.TgtCam] = s
		}
	}
	total := 0.0
	for _, s := range bestPerCam {
		total += s
	}
	return total
}

// ScoreAll runs the scorer over every registered view in registration
// order (spec §4.5, §5). matchesBySource is consumed and mutated in place
// with inverse-materialized matches as unprocessed target views are
// discovered.
func ScoreAll(reg *Registry, matchesBySource map[int][]Match, params ScoreParams) ScoreResult {
	params = clampScoreParams(params)

	result := ScoreResult{
		Estimates:   make(map[Segment2D]Estimated3D),
		Candidates:  make(map[Segment2D][]Match),
		Clusterable: make(map[Segment2D]bool),
		SigmaA:      params.SigmaA,
	}

	for _, camID := range reg.Order() {
		view := reg.Get(camID)
		n := view.NumSegments()
		var bestDepths []float64

		for segIdx := 0; segIdx < n; segIdx++ {
			seg2D := Segment2D{CamID: camID, SegID: segIdx}
			cands := candidatesForSegment(matchesBySource[camID], segIdx)
			if len(cands) == 0 {
				continue
			}
			srcSeg := view.Segment(segIdx)
			k := view.K()

			scored := make([]Match, len(cands))
			validCams := make(map[int]bool)
			for i, m := range cands {
				m.Score3D = score3DOf(view.Cam, srcSeg, k, params.SigmaA, params.MinSim3D, m, cands)
				scored[i] = m
				if m.Score3D > params.MinScore3D {
					validCams[m.TgtCam] = true
				}
			}
			if len(validCams) >= 2 {
				result.Clusterable[seg2D] = true
			}

			var retained []Match
			for _, m := range scored {
				if m.Score3D > params.MinScore3D {
					retained = append(retained, m)
				}
			}
			if len(retained) == 0 {
				continue
			}
			result.Candidates[seg2D] = retained

			best := retained[0]
			for _, m := range retained[1:] {
				if m.Score3D > best.Score3D {
					best = m
				}
			}
			if best.Score3D > params.MinBestScore3D {
				result.Estimates[seg2D] = Estimated3D{
					Seg:  seg2D,
					Best: best,
					Geom: backProject(view.Cam, srcSeg, best),
				}
				bestDepths = append(bestDepths, best.DepthP1, best.DepthP2)
			}

			for _, m := range retained {
				tgtView := reg.Get(m.TgtCam)
				if tgtView != nil && !tgtView.Processed() {
					matchesBySource[m.TgtCam] = append(matchesBySource[m.TgtCam], m.Swapped())
				}
			}
		}

		if len(bestDepths) > 0 {
			view.UpdateMedianDepth(bestDepths)
		}
		view.markProcessed()
	}

	return result
}
