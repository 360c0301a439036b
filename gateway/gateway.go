package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"

	"github.com/fusionrt/fusion-runtime/execplane"
	"github.com/fusionrt/fusion-runtime/hooks"
	"github.com/fusionrt/fusion-runtime/transport"
	"github.com/fusionrt/fusion-runtime/transport/httptransport"
	"github.com/fusionrt/fusion-runtime/transport/pluginhost"
)

type GatewayService struct {
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	Kind        string   `yaml:"kind" default:"http"`
	SchemaFiles []string `yaml:"schema_files"`
}

// TransportConfig names a non-default transport kind a dynamic plugin
// provides. PluginCommand is read from configuration but not used: plugin
// discovery always looks for the conventional `transport-<kind>` binary.
type TransportConfig struct {
	Kind          string `yaml:"kind"`
	PluginCommand string `yaml:"plugin_command"`
}

type GatewayOption struct {
	Endpoint                    string                    `yaml:"endpoint"`
	ServiceName                 string                    `yaml:"service_name"`
	Port                        int                       `yaml:"port"`
	TimeoutDuration             string                    `yaml:"timeout_duration" default:"5s"`
	EnableHangOverRequestHeader bool                      `yaml:"enable_hang_over_request_header" default:"true"`
	Services                    []GatewayService          `yaml:"services"`
	Transports                  []TransportConfig         `yaml:"transports"`
	PluginDirs                  []string                  `yaml:"plugin_dirs"`
	SubgraphRetry               httptransport.RetryOption `yaml:"subgraph_retry"`
	Opentelemetry               OpentelemetrySetting      `yaml:"opentelemetry"`
}

type OpentelemetrySetting struct {
	TracingSetting OpentelemetryTracingSetting `yaml:"tracing"`
}

type OpentelemetryTracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}

type gateway struct {
	graphQLEndpoint string
	serviceName     string
	store           atomic.Pointer[schemaStore]

	runtime     *execplane.Runtime
	pluginHost  *pluginhost.Host
	logger      *slog.Logger

	requestTimeout              time.Duration
	enableHangOverRequestHeader bool
}

var _ http.Handler = (*gateway)(nil)

// NewGateway builds a gateway: it wires an execplane.Runtime over a
// transport.Registry (the default "http" transport plus, when plugin
// directories are configured, dynamic plugin discovery), and merges every
// configured subgraph's schema through merger.Merge into the UnifiedSchema
// that ServeHTTP routes requests against.
func NewGateway(settings GatewayOption) (*gateway, error) {
	logger := slog.Default()

	sdls := make(map[string]string, len(settings.Services))
	for _, s := range settings.Services {
		var schema []byte
		for _, f := range s.SchemaFiles {
			src, err := os.ReadFile(f)
			if err != nil {
				return nil, err
			}
			schema = append(schema, src...)
		}
		sdls[s.Name] = string(schema)
	}

	var pluginHost *pluginhost.Host
	if len(settings.PluginDirs) > 0 || len(settings.Transports) > 0 {
		pluginHost = pluginhost.NewHost(settings.PluginDirs, hclog.New(&hclog.LoggerOptions{
			Name:  "pluginhost",
			Level: hclog.Info,
		}))
	}

	var discoverer transport.Discoverer
	if pluginHost != nil {
		discoverer = pluginHost
	}
	registry := buildTransportRegistry(discoverer)

	runtimeHooks := []execplane.OnSubgraphExecuteHook{hooks.RequestLogging()}
	if settings.Opentelemetry.TracingSetting.Enable {
		runtimeHooks = append(runtimeHooks, hooks.Tracing(settings.ServiceName))
	}

	runtime := execplane.NewRuntime(execplane.Config{
		Transports:             registry,
		TransportEntryMap:      transportEntriesFor(settings.Services, settings),
		OnSubgraphExecuteHooks: runtimeHooks,
		TransportContext:       &execplane.TransportContext{Logger: logger},
	})

	engine, err := buildEngine(context.Background(), sdls, servicesByName(settings.Services), runtime, logger)
	if err != nil {
		return nil, err
	}

	timeout := 5 * time.Second
	if settings.TimeoutDuration != "" {
		if d, err := time.ParseDuration(settings.TimeoutDuration); err == nil {
			timeout = d
		}
	}

	gw := &gateway{
		graphQLEndpoint:             settings.Endpoint,
		serviceName:                 settings.ServiceName,
		runtime:                     runtime,
		pluginHost:                  pluginHost,
		logger:                      logger,
		requestTimeout:              timeout,
		enableHangOverRequestHeader: settings.EnableHangOverRequestHeader,
	}
	gw.store.Store(&schemaStore{
		sdls:    sdls,
		entries: servicesByName(settings.Services),
		engine:  engine,
	})

	return gw, nil
}

// Reload rebuilds the unified schema from a fresh set of subgraph SDLs and
// atomically swaps it in; in-flight requests keep using the generation they
// started with.
func (g *gateway) Reload(ctx context.Context, sdls map[string]string, entries map[string]GatewayService) error {
	engine, err := buildEngine(ctx, sdls, entries, g.runtime, g.logger)
	if err != nil {
		return fmt.Errorf("gateway: reload failed: %w", err)
	}

	g.store.Store(&schemaStore{
		sdls:    copyMap(sdls),
		entries: entries,
		engine:  engine,
	})
	return nil
}

// Close drains the transport runtime's disposable resources and, if a
// plugin host was launched, terminates every plugin subprocess.
func (g *gateway) Close(ctx context.Context) error {
	err := g.runtime.Shutdown(ctx)
	if g.pluginHost != nil {
		g.pluginHost.Close()
	}
	return err
}

func (g *gateway) engine() *executionEngine {
	return g.store.Load().engine
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.requestTimeout)
	defer cancel()
	if g.enableHangOverRequestHeader {
		ctx = execplane.SetRequestHeaderToContext(ctx, r.Header)
	}

	l := lexer.New(req.Query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": p.Errors(),
		})
		return
	}

	engine := g.engine()

	if err := g.validateAccessibility(engine, doc); err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{
				{
					"message":    err.Error(),
					"extensions": map[string]string{"code": "INACCESSIBLE_FIELD"},
				},
			},
		})
		return
	}

	subgraphName, err := g.resolveSubgraph(engine, doc)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []string{err.Error()},
		})
		return
	}

	result, err := g.runtime.OnSubgraphExecute(ctx, subgraphName, &execplane.ExecutionRequest{
		Document:       req.Query,
		ParsedDocument: doc,
		Variables:      req.Variables,
	})
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []string{err.Error()},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responseBodyFor(result))
}

// responseBodyFor adapts whatever OnSubgraphExecute returned into a
// GraphQL-shaped JSON body. Streaming results (subscriptions) aren't
// representable over a single JSON response; this handler only serves
// queries and mutations, so it reports an error rather than attempting to
// drain a stream into one document.
func responseBodyFor(result any) map[string]any {
	switch r := result.(type) {
	case *execplane.ExecutionResult:
		body := map[string]any{"data": r.Data}
		if len(r.Errors) > 0 {
			errs := make([]map[string]any, 0, len(r.Errors))
			for _, e := range r.Errors {
				errs = append(errs, map[string]any{"message": e.Error()})
			}
			body["errors"] = errs
		}
		if len(r.Extensions) > 0 {
			body["extensions"] = r.Extensions
		}
		return body
	case execplane.StreamResult:
		return map[string]any{
			"errors": []map[string]any{{"message": "gateway: subscriptions are not served over this HTTP handler"}},
		}
	default:
		return map[string]any{
			"errors": []map[string]any{{"message": fmt.Sprintf("gateway: unexpected subgraph executor result type %T", result)}},
		}
	}
}

// resolveSubgraph determines which single subgraph should receive doc's
// operation. The runtime does not re-plan or split a query across
// subgraphs (the plan is implicit in the stitched schema): the ownership
// map built at merge time already records, for every "Type.field", which
// subgraph resolves it, so routing a root selection set is a direct lookup
// rather than a cost search. An operation whose root fields are owned by
// more than one subgraph is rejected, since this runtime has no
// cross-subgraph step executor to satisfy it.
func (g *gateway) resolveSubgraph(engine *executionEngine, doc *ast.Document) (execplane.SubgraphName, error) {
	for _, def := range doc.Definitions {
		opDef, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}

		rootTypeName := "Query"
		switch opDef.Operation {
		case ast.Mutation:
			rootTypeName = "Mutation"
		case ast.Subscription:
			rootTypeName = "Subscription"
		}

		var target string
		for _, sel := range opDef.SelectionSet {
			field, ok := sel.(*ast.Field)
			if !ok {
				continue
			}
			fieldName := field.Name.String()
			if fieldName == "__typename" || fieldName == "__schema" || fieldName == "__type" {
				continue
			}

			owner := engine.unified.Super.GetFieldOwnerSubGraph(rootTypeName, fieldName)
			if owner == nil {
				return "", fmt.Errorf("gateway: no subgraph resolves field %q on %q", fieldName, rootTypeName)
			}
			if target == "" {
				target = owner.Name
			} else if target != owner.Name {
				return "", fmt.Errorf("gateway: operation roots span multiple subgraphs (%q, %q): cross-subgraph query splitting is out of scope", target, owner.Name)
			}
		}

		if target != "" {
			return execplane.SubgraphName(target), nil
		}
	}

	return "", fmt.Errorf("gateway: operation selects no resolvable root field")
}

func (g *gateway) Start(port int) error {
	fmt.Printf("Gateway started on port %d\n", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), g)
}

// validateAccessibility validates that no @inaccessible fields are queried,
// against engine's merged UnifiedSchema rather than a single subgraph.
func (g *gateway) validateAccessibility(engine *executionEngine, doc *ast.Document) error {
	for _, def := range doc.Definitions {
		if opDef, ok := def.(*ast.OperationDefinition); ok {
			rootTypeName := "Query"
			switch opDef.Operation {
			case ast.Query:
				rootTypeName = "Query"
			case ast.Mutation:
				rootTypeName = "Mutation"
			case ast.Subscription:
				rootTypeName = "Subscription"
			}

			if err := g.validateSelectionSet(engine, opDef.SelectionSet, rootTypeName); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateSelectionSet recursively validates selections.
func (g *gateway) validateSelectionSet(engine *executionEngine, selSet []ast.Selection, parentTypeName string) error {
	if selSet == nil {
		return nil
	}

	for _, sel := range selSet {
		switch s := sel.(type) {
		case *ast.Field:
			fieldName := s.Name.String()

			if fieldName == "__typename" || fieldName == "__schema" || fieldName == "__type" {
				continue
			}

			if err := g.checkFieldAccessibility(engine, parentTypeName, fieldName); err != nil {
				return err
			}

			nextTypeName := g.getFieldTypeName(engine, parentTypeName, fieldName)
			if nextTypeName != "" {
				if err := g.validateSelectionSet(engine, s.SelectionSet, nextTypeName); err != nil {
					return err
				}
			}

		case *ast.FragmentSpread:
			// TODO: validate selections reached only through a named fragment.

		case *ast.InlineFragment:
			typeCondition := ""
			if s.TypeCondition != nil {
				typeCondition = s.TypeCondition.Name.String()
			}
			if typeCondition == "" {
				typeCondition = parentTypeName
			}
			if err := g.validateSelectionSet(engine, s.SelectionSet, typeCondition); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkFieldAccessibility checks if a field is inaccessible.
func (g *gateway) checkFieldAccessibility(engine *executionEngine, typeName, fieldName string) error {
	for _, subGraph := range engine.unified.Super.SubGraphs {
		if entity, exists := subGraph.GetEntity(typeName); exists {
			if field, ok := entity.Fields[fieldName]; ok {
				if field.IsInaccessible() {
					return fmt.Errorf("Cannot query field \"%s\" on type \"%s\"", fieldName, typeName)
				}
			}
		}

		for _, def := range subGraph.Schema.Definitions {
			if objDef, ok := def.(*ast.ObjectTypeDefinition); ok {
				if objDef.Name.String() == typeName {
					for _, f := range objDef.Fields {
						if f.Name.String() == fieldName {
							for _, d := range f.Directives {
								if d.Name == "inaccessible" {
									return fmt.Errorf("Cannot query field \"%s\" on type \"%s\"", fieldName, typeName)
								}
							}
						}
					}
				}
			}
		}
	}

	return nil
}

// getFieldTypeName returns the type name of a field.
func (g *gateway) getFieldTypeName(engine *executionEngine, typeName, fieldName string) string {
	for _, def := range engine.unified.Super.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok {
			if objDef.Name.String() == typeName {
				for _, field := range objDef.Fields {
					if field.Name.String() == fieldName {
						return g.unwrapTypeName(field.Type)
					}
				}
			}
		}
	}
	return ""
}

// unwrapTypeName extracts the base type name from a type.
func (g *gateway) unwrapTypeName(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NamedType:
		return typ.Name.String()
	case *ast.ListType:
		return g.unwrapTypeName(typ.Type)
	case *ast.NonNullType:
		return g.unwrapTypeName(typ.Type)
	}
	return ""
}
