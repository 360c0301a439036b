package merger

import (
	"strings"
	"testing"
)

const federatedProductSDL = `
type Query {
	product(id: ID!): Product
}

type Product @key(fields: "id") {
	id: ID!
	name: String!
	price: Int! @shareable
	warehouseId: ID! @external
}`

func TestTranslateFederationToStitching_EmitsMergeDirective(t *testing.T) {
	out, err := TranslateFederationToStitching(federatedProductSDL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, ok := out.Configs["Product"]
	if !ok {
		t.Fatal("expected a MergeConfig for Product")
	}
	if len(cfg.KeyFields) != 1 || cfg.KeyFields[0] != "id" {
		t.Fatalf("expected key fields [id], got %v", cfg.KeyFields)
	}

	if !strings.Contains(out.SDL, `@merge(keyField:"id")`) {
		t.Fatalf("expected the rewritten SDL to carry a @merge directive, got:\n%s", out.SDL)
	}
}

func TestTranslateFederationToStitching_StripsFederationDirectives(t *testing.T) {
	out, err := TranslateFederationToStitching(federatedProductSDL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, directive := range []string{"@key(", "@shareable", "@external"} {
		if strings.Contains(out.SDL, directive) {
			t.Errorf("expected federation directive %q to be stripped from output, got:\n%s", directive, out.SDL)
		}
	}
}

func TestTranslateFederationToStitching_NoKeyDirectiveYieldsNoMergeConfig(t *testing.T) {
	out, err := TranslateFederationToStitching(`type Query { ping: String }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Configs) != 0 {
		t.Fatalf("expected no MergeConfig entries for a schema with no @key entities, got %v", out.Configs)
	}
}

func TestTranslateFederationToStitching_ResultIsCachedBySDLHash(t *testing.T) {
	first, err := TranslateFederationToStitching(federatedProductSDL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := TranslateFederationToStitching(federatedProductSDL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.SDL != second.SDL {
		t.Fatal("expected a cache hit to return byte-identical SDL for identical input")
	}
}

func TestTranslateFederationToStitching_InvalidSDLReturnsError(t *testing.T) {
	_, err := TranslateFederationToStitching(`this is not valid SDL { { { ]]]`)
	if err == nil {
		t.Fatal("expected an error for invalid SDL")
	}
}
