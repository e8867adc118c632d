package bounty

import (
	"context"
	"testing"

	"github.com/goliatone/go-bounty/core"
)

func TestExtensionHooks_RegisterAndApplyAdapterPacks(t *testing.T) {
	hooks := NewExtensionHooks()

	if err := hooks.RegisterAdapterPack(AdapterPack{}); err == nil {
		t.Fatalf("expected unnamed adapter pack to be rejected")
	}
	if err := hooks.RegisterAdapterPack(AdapterPack{Name: "empty"}); err == nil {
		t.Fatalf("expected empty adapter pack to be rejected")
	}

	pack := AdapterPack{
		Name: "github",
		Adapters: []core.TransportAdapter{
			&hookAdapter{kind: "rest"},
			&hookAdapter{kind: "graphql"},
		},
	}
	if err := hooks.RegisterAdapterPack(pack); err != nil {
		t.Fatalf("register adapter pack: %v", err)
	}
	if err := hooks.RegisterAdapterPack(pack); err == nil {
		t.Fatalf("expected duplicate adapter pack to be rejected")
	}

	registry := &hookAdapterRegistry{}
	if err := hooks.ApplyAdapterPacks(registry); err != nil {
		t.Fatalf("apply adapter packs: %v", err)
	}
	if len(registry.registered) != 2 {
		t.Fatalf("expected 2 registered adapters, got %d", len(registry.registered))
	}
	if registry.registered[0].Kind() != "rest" || registry.registered[1].Kind() != "graphql" {
		t.Fatalf("unexpected registration order: %v", registry.registered)
	}

	packs := hooks.AdapterPacks()
	if len(packs) != 1 || packs[0].Name != "github" || len(packs[0].Adapters) != 2 {
		t.Fatalf("unexpected adapter pack snapshot: %#v", packs)
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()

	if err := hooks.RegisterCommandQueryBundle("", nil); err == nil {
		t.Fatalf("expected unnamed bundle to be rejected")
	}
	if err := hooks.RegisterCommandQueryBundle("ops", nil); err == nil {
		t.Fatalf("expected nil bundle factory to be rejected")
	}

	err := hooks.RegisterCommandQueryBundle("ops", func(service CommandQueryService) (any, error) {
		facade, err := NewFacade(service)
		if err != nil {
			return nil, err
		}
		return facade.Commands(), nil
	})
	if err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("ops", func(CommandQueryService) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatalf("expected duplicate bundle to be rejected")
	}

	if _, err := hooks.BuildCommandQueryBundles(nil); err == nil {
		t.Fatalf("expected nil service to be rejected")
	}

	bundles, err := hooks.BuildCommandQueryBundles(&stubFacadeService{})
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	commands, ok := bundles["ops"].(Commands)
	if !ok {
		t.Fatalf("expected ops bundle to be a Commands value, got %T", bundles["ops"])
	}
	if commands.RunSweep == nil {
		t.Fatalf("expected bundle commands to be wired")
	}

	names := hooks.BundleNames()
	if len(names) != 1 || names[0] != "ops" {
		t.Fatalf("unexpected bundle names: %v", names)
	}
}

type hookAdapter struct {
	kind string
}

func (a *hookAdapter) Kind() string { return a.kind }

func (a *hookAdapter) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	return core.TransportResponse{StatusCode: 200}, nil
}

type hookAdapterRegistry struct {
	registered []core.TransportAdapter
}

func (r *hookAdapterRegistry) Register(adapter core.TransportAdapter) error {
	r.registered = append(r.registered, adapter)
	return nil
}
