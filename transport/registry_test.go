package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/fusionrt/fusion-runtime/execplane"
)

func stubModule(tag string) ModuleShape {
	return ModuleShapeFunc(func(ctx execplane.SubgraphExecCtx) (execplane.Executor, error) {
		return execplane.Executor(func(ctx context.Context, req *execplane.ExecutionRequest) (any, error) {
			return &execplane.ExecutionResult{Data: map[string]any{"tag": tag}}, nil
		}), nil
	})
}

func TestRegistry_InlineFactoryFuncWinsFirst(t *testing.T) {
	r := NewRegistry(func(kind string) (ModuleShape, error) {
		if kind == "http" {
			return stubModule("from-func"), nil
		}
		return nil, errors.New("unknown")
	}, nil)
	r.Register("http", stubModule("from-map"))

	factory, err := r.GetFactory("http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory == nil {
		t.Fatal("expected a non-nil factory")
	}
}

func TestRegistry_FallsBackToInlineMap(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("http", stubModule("from-map"))

	factory, err := r.GetFactory("http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory == nil {
		t.Fatal("expected a non-nil factory")
	}
}

type stubDiscoverer struct {
	kind string
	m    ModuleShape
	err  error
}

func (d *stubDiscoverer) Discover(kind string) (ModuleShape, error) {
	if kind != d.kind {
		return nil, &ErrNotFound{Kind: kind, ExpectedModule: "transport-" + kind}
	}
	return d.m, d.err
}

func TestRegistry_FallsBackToDynamicDiscovery(t *testing.T) {
	r := NewRegistry(nil, nil).WithDynamicDiscovery(&stubDiscoverer{kind: "grpc", m: stubModule("from-plugin")})

	factory, err := r.GetFactory("grpc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory == nil {
		t.Fatal("expected a non-nil factory from the discoverer")
	}
}

func TestRegistry_UnknownKindReturnsErrNotFound(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.GetFactory("nonexistent")
	if err == nil {
		t.Fatal("expected an error for an unregistered kind")
	}

	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *ErrNotFound, got %T: %v", err, err)
	}
	if notFound.Kind != "nonexistent" {
		t.Fatalf("expected Kind %q, got %q", "nonexistent", notFound.Kind)
	}
}

func TestRegistry_DefaultModuleUnwrapsOneLevel(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("http", DefaultModule{Default: stubModule("wrapped")})

	factory, err := r.GetFactory("http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory == nil {
		t.Fatal("expected a non-nil factory")
	}
}

func TestRegistry_DefaultModuleWithNilDefaultIsMisshapen(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("http", DefaultModule{Default: nil})

	_, err := r.GetFactory("http")
	if err == nil {
		t.Fatal("expected an error for a DefaultModule with a nil Default")
	}

	var misshapen *ErrMisshapen
	if !errors.As(err, &misshapen) {
		t.Fatalf("expected *ErrMisshapen, got %T: %v", err, err)
	}
}
