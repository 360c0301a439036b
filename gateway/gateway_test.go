package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const productSchemaWithInaccessible = `
type Product @key(fields: "id") {
	id: ID!
	name: String!
	internalCode: String! @inaccessible
}

type Query {
	product(id: ID!): Product
}
`

func newTestGateway(t *testing.T, sdl string) *gateway {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "product.graphql")
	if err := os.WriteFile(path, []byte(sdl), 0o644); err != nil {
		t.Fatalf("failed to write test schema: %v", err)
	}

	settings := GatewayOption{
		Endpoint:    "/graphql",
		ServiceName: "test-gateway",
		Port:        8080,
		Services: []GatewayService{
			{
				Name:        "product",
				Host:        "http://product.example.com",
				SchemaFiles: []string{path},
			},
		},
	}

	gw, err := NewGateway(settings)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	return gw
}

func postQuery(gw *gateway, query string) *httptest.ResponseRecorder {
	req := graphQLRequest{Query: query}
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httpReq)
	return w
}

func TestGateway_ValidateAccessibility_RejectsInaccessibleField(t *testing.T) {
	gw := newTestGateway(t, productSchemaWithInaccessible)

	w := postQuery(gw, `{ product(id: "1") { id internalCode } }`)

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	errs, ok := resp["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatal("expected errors in response")
	}

	errMap, ok := errs[0].(map[string]any)
	if !ok {
		t.Fatalf("expected error entry to be an object, got %T", errs[0])
	}

	if message, _ := errMap["message"].(string); message != `Cannot query field "internalCode" on type "Product"` {
		t.Errorf("unexpected error message: %s", message)
	}

	ext, ok := errMap["extensions"].(map[string]any)
	if !ok {
		t.Fatalf("expected error extensions, got %v", errMap["extensions"])
	}
	if code, _ := ext["code"].(string); code != "INACCESSIBLE_FIELD" {
		t.Errorf("expected error code INACCESSIBLE_FIELD, got: %s", code)
	}
}

func TestGateway_ValidateAccessibility_AllowsAccessibleField(t *testing.T) {
	gw := newTestGateway(t, productSchemaWithInaccessible)

	w := postQuery(gw, `{ product(id: "1") { id name } }`)

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if errs, ok := resp["errors"].([]any); ok {
		for _, e := range errs {
			if errMap, ok := e.(map[string]any); ok {
				if ext, ok := errMap["extensions"].(map[string]any); ok {
					if code, _ := ext["code"].(string); code == "INACCESSIBLE_FIELD" {
						t.Error("did not expect an INACCESSIBLE_FIELD error for an accessible-field-only query")
					}
				}
			}
		}
	}
}
