// Package jlmgo wires together the three core entry points of the
// region-graph middle end: constructing the region graph from a front end's
// ipgraph.Module, running the Steensgaard points-to analysis over it, and
// re-encoding the graph's memory-state dataflow against the resulting
// points-to graph. Each is exposed through internal/passutil.Wrap so an
// internal invariant violation surfaces as an error rather than a panic,
// matching §7's "errors are surfaced at top-level entry points only."
package jlmgo

import (
	"github.com/sjalander/jlmgo/config"
	"github.com/sjalander/jlmgo/internal/passutil"
	"github.com/sjalander/jlmgo/ipgraph"
	"github.com/sjalander/jlmgo/pointsto"
	"github.com/sjalander/jlmgo/region"

	"github.com/sjalander/jlmgo/encode"
)

// ConstructRegionGraph lowers m into a region graph (§4.4), after checking
// m's IRVersion against cfg's configured floor.
func ConstructRegionGraph(cfg *config.Config, m *ipgraph.Module) (*region.Graph, error) {
	return passutil.Wrap("ConstructRegionGraph", func() (*region.Graph, error) {
		if cfg == nil {
			cfg = config.Default()
		}
		if err := cfg.RequireMinIRVersion(m.IRVersion); err != nil {
			return nil, err
		}
		g, err := region.BuildModule(m)
		if err != nil {
			return nil, err
		}
		if cfg.TargetTriple != "" {
			g.TargetTriple = cfg.TargetTriple
		}
		if cfg.DataLayout != "" {
			g.DataLayout = cfg.DataLayout
		}
		return g, nil
	})()
}

// SteensgaardRun runs the unification-based points-to analysis over g and
// returns the resulting points-to graph (§4.5, §4.6).
func SteensgaardRun(cfg *config.Config, g *region.Graph) (*pointsto.PTG, error) {
	return passutil.Wrap("SteensgaardRun", func() (*pointsto.PTG, error) {
		return pointsto.Run(g)
	})()
}

// SteensgaardEncode rewrites g in place so each touched allocator carries
// its own memory-state token wherever ptg shows that is safe, then removes
// whatever the rewriting left unreachable (§4.7, §4.8).
func SteensgaardEncode(cfg *config.Config, g *region.Graph, ptg *pointsto.PTG) error {
	_, err := passutil.Wrap("SteensgaardEncode", func() (struct{}, error) {
		encode.Run(g, ptg)
		return struct{}{}, nil
	})()
	return err
}
