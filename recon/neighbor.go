package recon

import (
	"math"
	"sort"
)

// NeighborParams bundles the tunables for SelectNeighbors (spec §4.3, §6).
type NeighborParams struct {
	NumNeighbors int     // capped, minimum 2
	MinBaseline  float64 // clamped >= 0
}

// clampNeighborParams applies the defaults and clamps from spec §6.
func clampNeighborParams(p NeighborParams) NeighborParams {
	if p.NumNeighbors < 2 {
		p.NumNeighbors = 2
	}
	if p.MinBaseline < 0 {
		p.MinBaseline = 0
	}
	return p
}

// opticalAxis returns the camera's forward direction in world coordinates:
// the camera-space +Z axis rotated into world space.
func opticalAxis(cam Camera) Vec3 {
	return cam.R.Transpose().MulVec(Point3{0, 0, 1}).Normalized()
}

// candidate is a scored neighbor candidate for the greedy admission pass.
type candidate struct {
	id    int
	score float64
}

// SelectNeighbors computes, for every registered view, its set of visual
// neighbors (spec §4.3). Views with an explicit neighbor list use the
// subset of it that is currently registered; all other views use
// shared-tie-point scoring with baseline and optical-axis filters.
// Symmetry is not enforced: u appearing in v's neighbor set does not imply
// v appears in u's.
func SelectNeighbors(reg *Registry, params NeighborParams) map[int][]int {
	params = clampNeighborParams(params)
	views := reg.All()
	result := make(map[int][]int, len(views))

	for _, v := range views {
		result[v.CamID] = selectNeighborsFor(reg, v, views, params)
	}
	return result
}

func selectNeighborsFor(reg *Registry, v *View, all []*View, params NeighborParams) []int {
	if v.explicitNeighbors != nil {
		var out []int
		for _, id := range v.explicitNeighbors {
			if reg.Get(id) != nil && id != v.CamID {
				out = append(out, id)
			}
		}
		return out
	}

	if v.tiePoints == nil {
		return nil
	}

	var candidates []candidate
	vAxis := opticalAxis(v.Cam)
	for _, u := range all {
		if u.CamID == v.CamID || u.tiePoints == nil {
			continue
		}
		common := sharedTiePoints(v.tiePoints, u.tiePoints)
		if common == 0 {
			continue
		}
		denom := len(v.tiePoints) + len(u.tiePoints)
		if denom == 0 {
			continue
		}
		score := 2 * float64(common) / float64(denom)

		uAxis := opticalAxis(u.Cam)
		angle := math.Acos(clamp(vAxis.Dot(uAxis), -1, 1))
		if angle >= math.Pi/2 {
			continue
		}
		candidates = append(candidates, candidate{id: u.CamID, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var admitted []int
	admittedCenters := []Point3{v.Cam.Center()}
	for _, c := range candidates {
		if len(admitted) >= params.NumNeighbors {
			break
		}
		u := reg.Get(c.id)
		center := u.Cam.Center()
		ok := true
		for _, other := range admittedCenters {
			if baseline(center, other) <= params.MinBaseline {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		admitted = append(admitted, c.id)
		admittedCenters = append(admittedCenters, center)
	}
	return admitted
}

func sharedTiePoints(a, b map[int]struct{}) int {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	n := 0
	for id := range small {
		if _, ok := large[id]; ok {
			n++
		}
	}
	return n
}

func baseline(a, b Point3) float64 {
	return a.Sub(b).Norm()
}
