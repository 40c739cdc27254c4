// Package refine defines the external refinement collaborator contract
// (spec §4.8): an optional post-clustering pass that adjusts cluster
// geometries to minimize per-view reprojection residuals without changing
// cluster membership.
package refine

import "github.com/kwv/line3d/recon"

// NoopRefiner implements recon.Refiner as a pass-through: it returns the
// clusters unchanged. The engine downgrades to this when no backend is
// registered (spec §7's "missing optional backend" case).
type NoopRefiner struct{}

// Refine returns clusters unmodified.
func (NoopRefiner) Refine(_ *recon.Registry, clusters []recon.LineCluster3D, _ int) ([]recon.LineCluster3D, error) {
	return clusters, nil
}
