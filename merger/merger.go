package merger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/n9te9/graphql-parser/ast"

	"github.com/fusionrt/fusion-runtime/execplane"
	"github.com/fusionrt/fusion-runtime/federation/graph"
)

// apolloServiceSDLQuery is the standard Apollo Federation subgraph
// introspection query every federated subgraph must answer.
const apolloServiceSDLQuery = `query __ApolloGetServiceDefinition__ { _service { sdl } }`

const apolloServiceSDLOperation = "__ApolloGetServiceDefinition__"

// Merge detects which of subgraphs are Apollo-Federation-shaped, rewrites
// those into this runtime's stitching dialect, and stitches the result
// (unchanged stitching-native subgraphs plus translated ones) into a single
// UnifiedSchema. execute is used only for federated subgraphs that don't
// carry @link extension metadata: their SDL is fetched by routing
// __ApolloGetServiceDefinition__ through the very runtime this module
// builds, so SDL introspection is itself hook-observable.
func Merge(ctx context.Context, subgraphs []*graph.SubGraphV2, execute SubgraphExecuteFunc, logger *slog.Logger) (*UnifiedSchema, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rewritten := make([]*graph.SubGraphV2, len(subgraphs))
	perSubgraphMerge := make(map[execplane.SubgraphName]map[string]MergeConfig)

	var fetchErrs *multierror.Error

	for i, sg := range subgraphs {
		if !isFederated(sg) {
			rewritten[i] = sg
			continue
		}

		sdl, err := serviceSDL(ctx, sg, execute)
		if err != nil {
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("subgraph %q: %w", sg.Name, err))
			continue
		}

		translated, err := TranslateFederationToStitching(sdl)
		if err != nil {
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("subgraph %q: %w", sg.Name, err))
			continue
		}

		rebuilt, err := graph.NewSubGraphV2(sg.Name, []byte(translated.SDL), sg.Host)
		if err != nil {
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("subgraph %q: rebuilding translated schema: %w", sg.Name, err))
			continue
		}

		reattachResolvers(sg, rebuilt, logger)

		perSubgraphMerge[execplane.SubgraphName(sg.Name)] = translated.Configs
		rewritten[i] = rebuilt
	}

	if fetchErrs.ErrorOrNil() != nil {
		return nil, &FederationSDLFetchError{Errs: fetchErrs}
	}

	return Stitch(rewritten, StitchOptions{
		BatchDefault:       true,
		PerSubgraphMerge:   perSubgraphMerge,
		PreserveDirectives: true,
	})
}

// isFederated reports whether sg's Query type carries the Apollo Federation
// marker field `_service`.
func isFederated(sg *graph.SubGraphV2) bool {
	for _, def := range sg.Schema.Definitions {
		objType, ok := def.(*ast.ObjectTypeDefinition)
		if !ok || objType.Name.String() != "Query" {
			continue
		}
		for _, f := range objType.Fields {
			if f.Name.String() == "_service" {
				return true
			}
		}
	}
	return false
}

// serviceSDL returns sg's SDL without a network round trip when it carries
// parsed @link extension metadata (an "sdl" argument on the @link, else
// sg's own schema printed canonically), and otherwise falls back to a live
// __ApolloGetServiceDefinition__ fetch routed through execute.
func serviceSDL(ctx context.Context, sg *graph.SubGraphV2, execute SubgraphExecuteFunc) (string, error) {
	if link := sg.LinkExtensions(); link != nil {
		if sdl, ok := link["sdl"].(string); ok && sdl != "" {
			return sdl, nil
		}
		return printDocument(sg.Schema), nil
	}

	req := &execplane.ExecutionRequest{Document: apolloServiceSDLQuery, OperationName: apolloServiceSDLOperation}
	res, err := execute(ctx, execplane.SubgraphName(sg.Name), req)
	if err != nil {
		return "", err
	}

	result, ok := res.(*execplane.ExecutionResult)
	if !ok {
		return "", fmt.Errorf("merger: _service introspection returned a non-single result")
	}
	if len(result.Errors) > 0 {
		return "", result.Errors[0]
	}

	service, ok := result.Data["_service"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("merger: _service introspection response missing _service field")
	}
	sdl, ok := service["sdl"].(string)
	if !ok || sdl == "" {
		return "", fmt.Errorf("merger: _service introspection returned an empty sdl")
	}
	return sdl, nil
}

// reattachResolvers copies every field-level resolver registered on
// original onto rebuilt, by "Type.field" key. A resolver whose field no
// longer exists on the rebuilt type is dropped with a warning rather than
// failing the merge outright.
func reattachResolvers(original, rebuilt *graph.SubGraphV2, logger *slog.Logger) {
	for key, fn := range original.Resolvers() {
		typeName, fieldName, ok := splitTypeField(key)
		if !ok {
			continue
		}

		entity, ok := rebuilt.GetEntity(typeName)
		if !ok {
			logger.Warn("dropping resolver for a type absent after federation translation", "type", typeName, "field", fieldName)
			continue
		}
		if _, ok := entity.Fields[fieldName]; !ok {
			logger.Warn("dropping resolver for a field absent after federation translation", "type", typeName, "field", fieldName)
			continue
		}

		rebuilt.SetResolver(key, fn)
	}
}

func splitTypeField(key string) (string, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
