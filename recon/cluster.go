package recon

import "sort"

// ffUnionFind is a disjoint-set structure tracking component size, needed
// for the Felzenszwalb-style relaxing threshold (spec §4.7). Adapted
// directly from mesh/geojson_merge.go's unionFind (path-compressed find,
// arbitrary-root union), extended with a per-root size so the merge
// threshold can relax as components grow.
type ffUnionFind struct {
	parent []int
	size   []int
}

func newFFUnionFind(n int) *ffUnionFind {
	p := make([]int, n)
	s := make([]int, n)
	for i := range p {
		p[i] = i
		s[i] = 1
	}
	return &ffUnionFind{parent: p, size: s}
}

func (uf *ffUnionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *ffUnionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	uf.parent[ra] = rb
	uf.size[rb] += uf.size[ra]
}

// clusterBaseThreshold is the per-component threshold's initial value
// before relaxation (spec §4.7: "initialized to a constant (e.g., 3.0 in
// the source)").
const clusterBaseThreshold = 3.0

// threshold returns tau(comp) = clusterBaseThreshold / size(comp): it
// starts at clusterBaseThreshold for a singleton and relaxes (shrinks) as
// the component accumulates members, per the spec's internal-difference
// criterion.
func (uf *ffUnionFind) threshold(root int) float64 {
	return clusterBaseThreshold / float64(uf.size[root])
}

// ClusterAffinity runs edge-weight-ordered union-find clustering over the
// affinity graph (spec §4.7). Edges are processed strongest-first; two
// components merge once the edge weight reaches the more permissive of
// the two components' current thresholds, mirroring the classic
// Felzenszwalb internal-difference merge rule with the similarity sense
// inverted (here a higher weight means "more alike", so merging needs
// weight >= threshold rather than <=).
func ClusterAffinity(graph *AffinityGraph) [][]Segment2D {
	n := graph.NumVertices()
	if n == 0 {
		return nil
	}
	edges := graph.Edges()
	sort.Slice(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })

	uf := newFFUnionFind(n)
	for _, e := range edges {
		rp, rq := uf.find(e.I), uf.find(e.J)
		if rp == rq {
			continue
		}
		combined := uf.threshold(rp)
		if t := uf.threshold(rq); t < combined {
			combined = t
		}
		if e.Weight >= combined {
			uf.union(rp, rq)
		}
	}

	byRoot := make(map[int][]Segment2D)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], graph.Segment(i))
	}

	clusters := make([][]Segment2D, 0, len(byRoot))
	for _, members := range byRoot {
		clusters = append(clusters, members)
	}
	// Deterministic ordering for reproducible output (spec §8 idempotence).
	sort.Slice(clusters, func(i, j int) bool {
		return clusterMin(clusters[i]).less(clusterMin(clusters[j]))
	})
	return clusters
}

func clusterMin(members []Segment2D) Segment2D {
	best := members[0]
	for _, m := range members[1:] {
		if m.less(best) {
			best = m
		}
	}
	return best
}

func (s Segment2D) less(o Segment2D) bool {
	if s.CamID != o.CamID {
		return s.CamID < o.CamID
	}
	return s.SegID < o.SegID
}

// VisibilityFilter drops clusters covering fewer than visibilityT distinct
// cameras (spec §4.7; visibilityT is clamped to a minimum of 3 by
// config.Params before reaching here).
func VisibilityFilter(clusters [][]Segment2D, visibilityT int) [][]Segment2D {
	var out [][]Segment2D
	for _, cluster := range clusters {
		cams := make(map[int]struct{})
		for _, s := range cluster {
			cams[s.CamID] = struct{}{}
		}
		if len(cams) >= visibilityT {
			out = append(out, cluster)
		}
	}
	return out
}
