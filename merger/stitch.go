package merger

import (
	"github.com/fusionrt/fusion-runtime/execplane"
	"github.com/fusionrt/fusion-runtime/federation/graph"
)

// Stitch composes subgraphs (already translated where needed) into one
// UnifiedSchema, using the teacher's own supergraph composition
// (graph.NewSuperGraphV2) unchanged, then layering opts and a source map on
// top of it.
func Stitch(subgraphs []*graph.SubGraphV2, opts StitchOptions) (*UnifiedSchema, error) {
	super, err := graph.NewSuperGraphV2(subgraphs)
	if err != nil {
		return nil, err
	}

	sources := make(map[execplane.SubgraphName]*graph.SubGraphV2, len(subgraphs))
	for _, sg := range subgraphs {
		sources[execplane.SubgraphName(sg.Name)] = sg
	}

	return &UnifiedSchema{Super: super, Opts: opts, sources: sources}, nil
}
