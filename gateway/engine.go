package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fusionrt/fusion-runtime/execplane"
	"github.com/fusionrt/fusion-runtime/federation/graph"
	"github.com/fusionrt/fusion-runtime/merger"
	"github.com/fusionrt/fusion-runtime/transport"
	"github.com/fusionrt/fusion-runtime/transport/httptransport"
)

// executionEngine bundles all read-only components required to serve GraphQL
// requests against one merged supergraph generation. There is no planner or
// query-splitting executor here: the merged schema's ownership map already
// records which subgraph resolves which field, so dispatch is a direct
// lookup (see gateway.resolveSubgraph), not a re-plan.
type executionEngine struct {
	unified *merger.UnifiedSchema
}

// schemaStore holds the current generation's raw SDLs, per-subgraph config,
// and the pre-built engine. It is stored in an atomic.Pointer, so every value
// must be read-only after it is constructed: a hot reload builds a whole new
// schemaStore and swaps it in, rather than mutating one in place.
type schemaStore struct {
	sdls    map[string]string // subgraph name → SDL string
	entries map[string]GatewayService
	engine  *executionEngine
}

// buildEngine parses sdls into subgraphs, runs them through the transport
// runtime and schema merger, and returns the resulting UnifiedSchema wrapped
// in an executionEngine. Per-subgraph host/kind comes from entries; runtime
// is shared with the live gateway so subgraph calls made during merge
// (federation _service introspection) are hook-observable like any other
// call. The order subgraphs are processed follows sdls' (Go map) iteration
// order; SuperGraphV2 composition is order-independent.
func buildEngine(ctx context.Context, sdls map[string]string, entries map[string]GatewayService, runtime *execplane.Runtime, logger *slog.Logger) (*executionEngine, error) {
	if len(sdls) == 0 {
		return nil, fmt.Errorf("gateway: no subgraph schemas provided")
	}

	subGraphs := make([]*graph.SubGraphV2, 0, len(sdls))
	for name, sdl := range sdls {
		host := entries[name].Host
		sg, err := graph.NewSubGraphV2(name, []byte(sdl), host)
		if err != nil {
			return nil, fmt.Errorf("failed to build subgraph %q: %w", name, err)
		}
		subGraphs = append(subGraphs, sg)
	}

	unified, err := merger.Merge(ctx, subGraphs, runtime.OnSubgraphExecute, logger)
	if err != nil {
		return nil, fmt.Errorf("schema merge failed: %w", err)
	}

	return &executionEngine{unified: unified}, nil
}

// transportEntriesFor derives execplane.TransportEntry configuration from a
// gateway's configured services, defaulting to the "http" transport kind for
// any service that doesn't name one explicitly.
func transportEntriesFor(services []GatewayService, settings GatewayOption) map[execplane.SubgraphName]execplane.TransportEntry {
	entries := make(map[execplane.SubgraphName]execplane.TransportEntry, len(services))
	for _, s := range services {
		kind := s.Kind
		if kind == "" {
			kind = "http"
		}

		entries[execplane.SubgraphName(s.Name)] = execplane.TransportEntry{
			Kind: kind,
			Options: map[string]any{
				"endpoint":                        s.Host,
				"retry_attempts":                  settings.SubgraphRetry.Attempts,
				"retry_timeout":                   settings.SubgraphRetry.Timeout,
				"enable_opentelemetry_tracing":    settings.Opentelemetry.TracingSetting.Enable,
				"enable_hang_over_request_header": settings.EnableHangOverRequestHeader,
			},
		}
	}
	return entries
}

// buildTransportRegistry wires the default httptransport factory plus, when
// the gateway is configured with a dynamic discoverer (plugin directories),
// a pluginhost-backed fallback for transport kinds beyond "http".
func buildTransportRegistry(discoverer transport.Discoverer) *transport.Registry {
	registry := transport.NewRegistry(nil, nil)
	registry.Register("http", httptransport.New())
	if discoverer != nil {
		registry.WithDynamicDiscovery(discoverer)
	}
	return registry
}

// copyMap returns a shallow copy of a string map.
func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func servicesByName(services []GatewayService) map[string]GatewayService {
	out := make(map[string]GatewayService, len(services))
	for _, s := range services {
		out[s.Name] = s
	}
	return out
}
