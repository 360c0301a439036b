package merger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// TranslatedSchema is a cached translation outcome: the rewritten SDL text
// plus the per-entity stitching config the rewrite produced.
type TranslatedSchema struct {
	SDL     string
	Configs map[string]MergeConfig // entity type name -> config
}

var (
	translationCacheMu sync.RWMutex
	translationCache    = make(map[uint64]TranslatedSchema)
)

// federationDirectives are stripped from the output schema: @key and
// @extends are consumed into the generated @merge directive (type level);
// the rest are federation-only annotations with no further use once
// stitching config has been extracted from them.
var federationDirectives = map[string]bool{
	"key": true, "extends": true, "external": true,
	"requires": true, "provides": true, "shareable": true, "override": true,
}

// TranslateFederationToStitching rewrites Apollo Federation directives
// (@key, @external, @requires, @provides, @shareable, @extends, @override)
// into this runtime's own stitching dialect: a single
// @merge(keyField: "...") directive per entity type. This generalizes the
// teacher's getKey helper (federation/executor/executor.go) from "extract
// key fields" to "extract key fields and re-emit them under the runtime's
// own directive name" — same parsing, new output dialect.
//
// Results are cached by xxhash.Sum64String(sdl), so re-merging after a hot
// reload with byte-identical subgraph SDL is a cache hit.
func TranslateFederationToStitching(sdl string) (TranslatedSchema, error) {
	key := xxhash.Sum64String(sdl)

	translationCacheMu.RLock()
	if cached, ok := translationCache[key]; ok {
		translationCacheMu.RUnlock()
		return cached, nil
	}
	translationCacheMu.RUnlock()

	l := lexer.New(sdl)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return TranslatedSchema{}, fmt.Errorf("merger: failed to parse federation SDL: %v", p.Errors())
	}

	configs := make(map[string]MergeConfig)
	for _, def := range doc.Definitions {
		switch td := def.(type) {
		case *ast.ObjectTypeDefinition:
			if cfg, ok := entityMergeConfig(td.Directives); ok {
				configs[td.Name.String()] = cfg
			}
		case *ast.ObjectTypeExtension:
			if cfg, ok := entityMergeConfig(td.Directives); ok {
				configs[td.Name.String()] = cfg
			}
		}
	}

	out := TranslatedSchema{SDL: printStitchingSDL(doc, configs), Configs: configs}

	translationCacheMu.Lock()
	translationCache[key] = out
	translationCacheMu.Unlock()

	return out, nil
}

func entityMergeConfig(directives []*ast.Directive) (MergeConfig, bool) {
	keyFields := keyFieldsOf(directives)
	if len(keyFields) == 0 {
		return MergeConfig{}, false
	}

	cfg := MergeConfig{KeyFields: keyFields}
	for _, d := range directives {
		if d.Name == "noBatch" {
			cfg.DisableBatching = true
		}
	}
	return cfg, true
}

func keyFieldsOf(directives []*ast.Directive) []string {
	for _, d := range directives {
		if d.Name != "key" {
			continue
		}
		for _, arg := range d.Arguments {
			if arg.Name.String() != "fields" {
				continue
			}
			v := strings.Trim(arg.Value.String(), "\"")
			return strings.Fields(v)
		}
	}
	return nil
}
