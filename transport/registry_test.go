package transport

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-bounty/core"
)

type staticAdapter struct {
	kind string
}

func (a staticAdapter) Kind() string { return a.kind }

func (a staticAdapter) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	return core.TransportResponse{StatusCode: 200}, nil
}

func TestRegistry_RegisterGetAndListDeterministic(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(staticAdapter{kind: "mock"}); err != nil {
		t.Fatalf("register mock adapter: %v", err)
	}
	if err := registry.Register(staticAdapter{kind: "rest"}); err != nil {
		t.Fatalf("register rest adapter: %v", err)
	}

	if _, ok := registry.Get("rest"); !ok {
		t.Fatalf("expected rest adapter to be registered")
	}

	listed := registry.List()
	if len(listed) != 2 {
		t.Fatalf("expected 2 adapters, got %d", len(listed))
	}
	if listed[0].Kind() != "mock" || listed[1].Kind() != "rest" {
		t.Fatalf("expected deterministic sorted order, got %q and %q", listed[0].Kind(), listed[1].Kind())
	}

	if err := registry.Register(staticAdapter{kind: "rest"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestRegistry_RegisterFactoryBuildsCustomAdapter(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RegisterFactory("custom", func(config map[string]any) (core.TransportAdapter, error) {
		kind := strings.TrimSpace(fmt.Sprint(config["kind"]))
		if kind == "" {
			kind = "custom"
		}
		return staticAdapter{kind: kind}, nil
	}); err != nil {
		t.Fatalf("register factory: %v", err)
	}

	adapter, err := registry.Build("custom", map[string]any{"kind": "custom-kind"})
	if err != nil {
		t.Fatalf("build custom adapter: %v", err)
	}
	if adapter.Kind() != "custom-kind" {
		t.Fatalf("expected factory-built adapter, got %q", adapter.Kind())
	}

	if _, err := registry.Build("missing", nil); err == nil {
		t.Fatalf("expected unknown adapter kind error")
	}
}

func TestNewDefaultRegistry_RegistersREST(t *testing.T) {
	registry := NewDefaultRegistry()
	adapter, ok := registry.Get(KindREST)
	if !ok {
		t.Fatalf("expected rest adapter in default registry")
	}
	if adapter.Kind() != KindREST {
		t.Fatalf("expected rest kind, got %q", adapter.Kind())
	}
}
