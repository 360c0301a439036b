package merger

import (
	"testing"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

func parseSDL(t *testing.T, sdl string) *ast.Document {
	t.Helper()
	l := lexer.New(sdl)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("failed to parse SDL: %v", p.Errors())
	}
	return doc
}

func TestCompareSchemas_IdenticalSDLAreEqual(t *testing.T) {
	sdl := `
type Query {
	product(id: ID!): Product
}

type Product {
	id: ID!
	name: String
}`

	a := parseSDL(t, sdl)
	b := parseSDL(t, sdl)

	if !CompareSchemas(a, b) {
		t.Fatal("expected byte-identical SDL to compare equal")
	}
}

func TestCompareSchemas_DefinitionOrderDoesNotMatter(t *testing.T) {
	a := parseSDL(t, `
type Query { product(id: ID!): Product }
type Product { id: ID! name: String }`)

	b := parseSDL(t, `
type Product { id: ID! name: String }
type Query { product(id: ID!): Product }`)

	if !CompareSchemas(a, b) {
		t.Fatal("expected definition reordering to compare equal")
	}
}

func TestCompareSchemas_FieldOrderDoesNotMatter(t *testing.T) {
	a := parseSDL(t, `type Product { id: ID! name: String }`)
	b := parseSDL(t, `type Product { name: String id: ID! }`)

	if !CompareSchemas(a, b) {
		t.Fatal("expected field reordering to compare equal")
	}
}

func TestCompareSchemas_GenuineDifferenceComparesUnequal(t *testing.T) {
	a := parseSDL(t, `type Product { id: ID! name: String }`)
	b := parseSDL(t, `type Product { id: ID! name: String description: String }`)

	if CompareSchemas(a, b) {
		t.Fatal("expected schemas with a genuinely different field set to compare unequal")
	}
}

func TestCompareSchemas_DirectiveDifferenceComparesUnequal(t *testing.T) {
	a := parseSDL(t, `type Product @key(fields: "id") { id: ID! }`)
	b := parseSDL(t, `type Product { id: ID! }`)

	if CompareSchemas(a, b) {
		t.Fatal("expected a missing directive to compare unequal")
	}
}

func TestCompareSchemas_NilDocumentsAreEqual(t *testing.T) {
	if !CompareSchemas(nil, nil) {
		t.Fatal("expected two nil documents to compare equal")
	}
}
