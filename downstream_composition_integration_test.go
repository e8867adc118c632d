package bounty_test

import (
	"context"
	"testing"
	"time"

	bounty "github.com/goliatone/go-bounty"
	bountycommand "github.com/goliatone/go-bounty/command"
	"github.com/goliatone/go-bounty/core"
	bountyquery "github.com/goliatone/go-bounty/query"
	"github.com/goliatone/go-bounty/transport"
)

// Exercises the composition path a downstream application uses: build
// the runtime service, wrap it in the command/query facade, and extend
// the transport registry through extension hooks, without reaching into
// runtime internals.
func TestDownstreamComposition_FacadeOverRuntimeService(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := core.NewMemoryBountyStore()
	seeded, err := store.Put(context.Background(), core.Bounty{
		ID:            101,
		Repository:    "goliatone/widgets",
		IssueID:       42,
		Status:        core.BountyStatusActive,
		InitialAmount: 5000,
		CurrentAmount: 5000,
		MaxAmount:     40000,
		CreatedAt:     now.Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed bounty: %v", err)
	}

	payment := &downstreamPaymentProvider{
		balance: core.Balance{Address: "1Treasury", Amount: 250000},
	}

	svc, err := bounty.NewService(
		bounty.DefaultConfig(),
		bounty.WithBountyStore(store),
		bounty.WithPaymentProvider(payment),
		bounty.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	facade, err := bounty.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	found, err := facade.Queries().GetBounty.Query(context.Background(), bountyquery.GetBountyMessage{
		BountyID: seeded.ID,
	})
	if err != nil {
		t.Fatalf("query bounty through facade: %v", err)
	}
	if found.Repository != "goliatone/widgets" || found.Status != core.BountyStatusActive {
		t.Fatalf("unexpected bounty from facade query: %#v", found)
	}

	balance, err := facade.Queries().WalletBalance.Query(context.Background(), bountyquery.WalletBalanceMessage{})
	if err != nil {
		t.Fatalf("query wallet balance through facade: %v", err)
	}
	if balance.Amount != 250000 {
		t.Fatalf("unexpected wallet balance: %#v", balance)
	}

	if err := facade.Commands().Cancel.Execute(context.Background(), bountycommand.CancelBountyMessage{
		BountyID: seeded.ID,
		Reason:   "requested by maintainer",
	}); err != nil {
		t.Fatalf("cancel through facade: %v", err)
	}
	cancelled, err := store.Get(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("reload bounty: %v", err)
	}
	if cancelled.Status != core.BountyStatusCancelled {
		t.Fatalf("expected cancelled bounty, got %s", cancelled.Status)
	}
}

func TestDownstreamComposition_ExtensionHooksExtendTransportRegistry(t *testing.T) {
	hooks := bounty.NewExtensionHooks()
	if err := hooks.RegisterAdapterPack(bounty.AdapterPack{
		Name: "custom",
		Adapters: []core.TransportAdapter{
			&downstreamAdapter{kind: "webhook-relay"},
		},
	}); err != nil {
		t.Fatalf("register adapter pack: %v", err)
	}

	registry := transport.NewRegistry()
	if err := hooks.ApplyAdapterPacks(registry); err != nil {
		t.Fatalf("apply adapter packs: %v", err)
	}

	adapter, ok := registry.Get("webhook-relay")
	if !ok {
		t.Fatalf("expected custom adapter to be registered")
	}
	resp, err := adapter.Do(context.Background(), core.TransportRequest{Method: "POST", URL: "https://relay.internal/hook"})
	if err != nil {
		t.Fatalf("custom adapter call: %v", err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("unexpected relay status: %d", resp.StatusCode)
	}

	if err := hooks.RegisterCommandQueryBundle("downstream", func(service bounty.CommandQueryService) (any, error) {
		facade, err := bounty.NewFacade(service)
		if err != nil {
			return nil, err
		}
		return facade.Queries(), nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}

	svc, err := bounty.NewService(
		bounty.DefaultConfig(),
		bounty.WithPaymentProvider(&downstreamPaymentProvider{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	bundles, err := hooks.BuildCommandQueryBundles(svc)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	queries, ok := bundles["downstream"].(bounty.Queries)
	if !ok {
		t.Fatalf("expected downstream bundle to be Queries, got %T", bundles["downstream"])
	}
	if queries.EscalationCandidates == nil {
		t.Fatalf("expected bundle queries to be wired")
	}
}

type downstreamPaymentProvider struct {
	balance core.Balance
}

func (p *downstreamPaymentProvider) SendPayment(
	_ context.Context,
	address string,
	amount int64,
	idempotencyKey string,
) (core.PaymentReceipt, error) {
	return core.PaymentReceipt{TransactionID: "tx-" + idempotencyKey, Amount: amount, Recipient: address}, nil
}

func (p *downstreamPaymentProvider) GetBalance(context.Context) (core.Balance, error) {
	return p.balance, nil
}

func (p *downstreamPaymentProvider) ValidateAddress(context.Context, string) (bool, error) {
	return true, nil
}

type downstreamAdapter struct {
	kind string
}

func (a *downstreamAdapter) Kind() string { return a.kind }

func (a *downstreamAdapter) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	return core.TransportResponse{StatusCode: 202}, nil
}
