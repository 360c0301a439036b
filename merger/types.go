// Package merger turns a set of federated or stitching-native subgraphs into
// one unified schema. Federated subgraphs are detected by their `_service`
// field and rewritten into this runtime's own stitching dialect before
// being composed with the teacher's subgraph/supergraph composition code.
package merger

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/fusionrt/fusion-runtime/execplane"
	"github.com/fusionrt/fusion-runtime/federation/graph"
)

// SubgraphExecuteFunc is execplane.SubgraphExecuteFunc: enough to issue an
// SDL-introspection request through the very runtime this module builds, so
// SDL fetches are hook-observable like any other subgraph call.
type SubgraphExecuteFunc = execplane.SubgraphExecuteFunc

// MergeConfig is the per-entity-type outcome of federation translation: the
// generated stitching directive arguments and any runtime-specific
// extension directives the federation SDL carried.
type MergeConfig struct {
	KeyFields       []string
	DisableBatching bool
}

// ResolverFunc is a field-level resolver a host attaches to a subgraph's
// rebuilt schema, keyed by "Type.field" via graph.SubGraphV2.SetResolver.
type ResolverFunc func(ctx context.Context, obj any, args map[string]any) (any, error)

// StitchOptions configures UnifiedSchema composition. PerSubgraphMerge
// carries the per-entity-type stitching config produced by translating a
// federated subgraph, keyed first by subgraph then by entity type name.
type StitchOptions struct {
	BatchDefault        bool
	PerSubgraphMerge    map[execplane.SubgraphName]map[string]MergeConfig
	ValidateTypeMerging bool
	PreserveDirectives  bool
}

// UnifiedSchema is the result of stitching every (possibly translated)
// subgraph into one supergraph.
type UnifiedSchema struct {
	Super   *graph.SuperGraphV2
	Opts    StitchOptions
	sources map[execplane.SubgraphName]*graph.SubGraphV2
}

// MergeConfigFor looks up the stitching config for a specific entity type
// within a specific subgraph, as produced by federation translation.
func (u *UnifiedSchema) MergeConfigFor(name execplane.SubgraphName, typeName string) (MergeConfig, bool) {
	bySubgraph, ok := u.Opts.PerSubgraphMerge[name]
	if !ok {
		return MergeConfig{}, false
	}
	cfg, ok := bySubgraph[typeName]
	return cfg, ok
}

// SourceMap exposes the post-stitching per-subgraph subschema, keyed by
// subgraph name.
func (u *UnifiedSchema) SourceMap() map[execplane.SubgraphName]*graph.SubGraphV2 {
	return u.sources
}

// FederationSDLFetchError aggregates every subgraph's SDL-introspection
// failure during a single merge attempt.
type FederationSDLFetchError struct {
	Errs *multierror.Error
}

func (e *FederationSDLFetchError) Error() string {
	return fmt.Sprintf("merger: failed to fetch SDL for one or more federated subgraphs: %s", e.Errs.Error())
}

func (e *FederationSDLFetchError) Unwrap() error { return e.Errs.ErrorOrNil() }
