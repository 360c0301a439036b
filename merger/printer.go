package merger

import (
	"sort"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
)

// CompareSchemas reports whether a and b print to byte-identical canonical
// SDL, so whitespace and definition or field order do not count as a change.
// The translation cache does not use it: it keys on a hash of the raw SDL.
func CompareSchemas(a, b *ast.Document) bool {
	return printDocument(a) == printDocument(b)
}

// printDocument deterministically prints doc: definitions sorted by kind
// then name, fields sorted by name, directives printed in declaration
// order. Field arguments, enum values and union member types are not
// printed, so documents that differ only in those print identically.
// graphql-parser does not export a canonical printer, so this one is
// hand-rolled.
func printDocument(doc *ast.Document) string {
	if doc == nil {
		return ""
	}

	defs := make([]ast.Definition, len(doc.Definitions))
	copy(defs, doc.Definitions)
	sort.SliceStable(defs, func(i, j int) bool {
		ki, ni := defKindAndName(defs[i])
		kj, nj := defKindAndName(defs[j])
		if ki != kj {
			return ki < kj
		}
		return ni < nj
	})

	var b strings.Builder
	for _, def := range defs {
		printDefinition(&b, def)
		b.WriteByte('\n')
	}
	return b.String()
}

func defKindAndName(def ast.Definition) (int, string) {
	switch d := def.(type) {
	case *ast.ScalarTypeDefinition:
		return 0, d.Name.String()
	case *ast.ObjectTypeDefinition:
		return 1, d.Name.String()
	case *ast.ObjectTypeExtension:
		return 2, d.Name.String()
	case *ast.InterfaceTypeDefinition:
		return 3, d.Name.String()
	case *ast.UnionTypeDefinition:
		return 4, d.Name.String()
	case *ast.EnumTypeDefinition:
		return 5, d.Name.String()
	case *ast.InputObjectTypeDefinition:
		return 6, d.Name.String()
	case *ast.DirectiveDefinition:
		return 7, d.Name.String()
	default:
		return 8, ""
	}
}

func printDefinition(b *strings.Builder, def ast.Definition) {
	switch d := def.(type) {
	case *ast.ScalarTypeDefinition:
		b.WriteString("scalar ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
	case *ast.ObjectTypeDefinition:
		b.WriteString("type ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
		printFields(b, d.Fields)
	case *ast.ObjectTypeExtension:
		b.WriteString("extend type ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
		printFields(b, d.Fields)
	case *ast.InterfaceTypeDefinition:
		b.WriteString("interface ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
		printFields(b, d.Fields)
	case *ast.UnionTypeDefinition:
		b.WriteString("union ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
	case *ast.EnumTypeDefinition:
		b.WriteString("enum ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
	case *ast.InputObjectTypeDefinition:
		b.WriteString("input ")
		b.WriteString(d.Name.String())
		printDirectives(b, d.Directives)
		printFields(b, d.Fields)
	case *ast.DirectiveDefinition:
		b.WriteString("directive @")
		b.WriteString(d.Name.String())
	}
}

func printFields(b *strings.Builder, fields []*ast.FieldDefinition) {
	sorted := make([]*ast.FieldDefinition, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name.String() < sorted[j].Name.String()
	})

	b.WriteString(" {")
	for _, f := range sorted {
		b.WriteByte(' ')
		b.WriteString(f.Name.String())
		b.WriteString(": ")
		b.WriteString(f.Type.String())
		printDirectives(b, f.Directives)
	}
	b.WriteString(" }")
}

// printStitchingSDL prints doc the same way printDocument does, except
// federation directives are dropped (type- and field-level) and, for each
// entity type named in configs, a synthetic @merge(keyField: "...", ...)
// directive is appended in their place.
func printStitchingSDL(doc *ast.Document, configs map[string]MergeConfig) string {
	if doc == nil {
		return ""
	}

	defs := make([]ast.Definition, len(doc.Definitions))
	copy(defs, doc.Definitions)
	sort.SliceStable(defs, func(i, j int) bool {
		ki, ni := defKindAndName(defs[i])
		kj, nj := defKindAndName(defs[j])
		if ki != kj {
			return ki < kj
		}
		return ni < nj
	})

	var b strings.Builder
	for _, def := range defs {
		printStitchingDefinition(&b, def, configs)
		b.WriteByte('\n')
	}
	return b.String()
}

func printStitchingDefinition(b *strings.Builder, def ast.Definition, configs map[string]MergeConfig) {
	switch d := def.(type) {
	case *ast.ObjectTypeDefinition:
		b.WriteString("type ")
		b.WriteString(d.Name.String())
		printNonFederationDirectives(b, d.Directives)
		printMergeDirective(b, d.Name.String(), configs)
		printFieldsStripped(b, d.Fields)
	case *ast.ObjectTypeExtension:
		b.WriteString("extend type ")
		b.WriteString(d.Name.String())
		printNonFederationDirectives(b, d.Directives)
		printMergeDirective(b, d.Name.String(), configs)
		printFieldsStripped(b, d.Fields)
	default:
		printDefinition(b, def)
	}
}

func printFieldsStripped(b *strings.Builder, fields []*ast.FieldDefinition) {
	sorted := make([]*ast.FieldDefinition, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name.String() < sorted[j].Name.String()
	})

	b.WriteString(" {")
	for _, f := range sorted {
		b.WriteByte(' ')
		b.WriteString(f.Name.String())
		b.WriteString(": ")
		b.WriteString(f.Type.String())
		printNonFederationDirectives(b, f.Directives)
	}
	b.WriteString(" }")
}

func printNonFederationDirectives(b *strings.Builder, directives []*ast.Directive) {
	kept := make([]*ast.Directive, 0, len(directives))
	for _, d := range directives {
		if !federationDirectives[d.Name] {
			kept = append(kept, d)
		}
	}
	printDirectives(b, kept)
}

func printMergeDirective(b *strings.Builder, typeName string, configs map[string]MergeConfig) {
	cfg, ok := configs[typeName]
	if !ok {
		return
	}
	b.WriteString(" @merge(")
	for i, f := range cfg.KeyFields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`keyField:"`)
		b.WriteString(f)
		b.WriteByte('"')
	}
	b.WriteByte(')')
}

func printDirectives(b *strings.Builder, directives []*ast.Directive) {
	for _, d := range directives {
		b.WriteString(" @")
		b.WriteString(d.Name)
		if len(d.Arguments) == 0 {
			continue
		}
		b.WriteByte('(')
		for i, arg := range d.Arguments {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(arg.Name.String())
			b.WriteByte(':')
			b.WriteString(arg.Value.String())
		}
		b.WriteByte(')')
	}
}
