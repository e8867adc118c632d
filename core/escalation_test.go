package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSweep_EscalatesEligibleCandidates(t *testing.T) {
	store := NewMemoryBountyStore()
	escrow := &stubEscrowLedger{quote: EscalationQuote{NewAmount: 2000, Reference: "esc-1"}}
	publisher := &stubPublisher{}
	svc := newTestService(t,
		WithBountyStore(store),
		WithEscrowLedger(escrow),
		WithNotificationPublisher(publisher),
	)

	eligible := testBounty()
	eligible.ID = 1
	eligible.CreatedAt = time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)
	eligible = seedBounty(t, store, eligible)

	young := testBounty()
	young.ID = 2
	young.IssueID = 43
	young.CreatedAt = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	seedBounty(t, store, young)

	stats, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Examined != 2 || stats.Escalated != 1 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected sweep stats: %+v", stats)
	}

	after, _ := store.Get(context.Background(), eligible.ID)
	if after.CurrentAmount != 2000 {
		t.Fatalf("expected escalated amount 2000, got %d", after.CurrentAmount)
	}
	if after.EscalationCount != 1 || after.LastEscalatedAt == nil {
		t.Fatalf("expected escalation bookkeeping, got %+v", after)
	}
	if after.Status != BountyStatusActive {
		t.Fatalf("expected escalation to keep bounty active, got %q", after.Status)
	}
	if len(publisher.escalated) != 1 {
		t.Fatalf("expected one escalation notice, got %d", len(publisher.escalated))
	}
}

func TestSweep_ScheduleTimingScenario(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := created
	store := NewMemoryBountyStore()
	escrow := &stubEscrowLedger{quote: EscalationQuote{NewAmount: 2000}}
	svc := newTestService(t,
		WithBountyStore(store),
		WithEscrowLedger(escrow),
		WithClock(func() time.Time { return now }),
	)

	bounty := testBounty()
	bounty.CreatedAt = created
	bounty = seedBounty(t, store, bounty)

	now = created.Add(25 * time.Hour)
	stats, err := svc.Sweep(context.Background())
	if err != nil || stats.Escalated != 1 {
		t.Fatalf("expected escalation at T+25h, got %+v err=%v", stats, err)
	}

	now = created.Add(30 * time.Hour)
	escrow.quote.NewAmount = 3000
	stats, err = svc.Sweep(context.Background())
	if err != nil || stats.Escalated != 0 || stats.Skipped != 1 {
		t.Fatalf("expected no-op inside the minimum gap at T+30h, got %+v err=%v", stats, err)
	}

	now = created.Add(73 * time.Hour)
	stats, err = svc.Sweep(context.Background())
	if err != nil || stats.Escalated != 1 {
		t.Fatalf("expected escalation at T+73h, got %+v err=%v", stats, err)
	}

	after, _ := store.Get(context.Background(), bounty.ID)
	if after.EscalationCount != 2 {
		t.Fatalf("expected two escalations, got %d", after.EscalationCount)
	}
	if after.CurrentAmount != 3000 {
		t.Fatalf("expected amount 3000, got %d", after.CurrentAmount)
	}
}

func TestSweep_QuoteFailureCountsAsFailed(t *testing.T) {
	store := NewMemoryBountyStore()
	escrow := &stubEscrowLedger{quoteErr: errors.New("escrow backend down")}
	svc := newTestService(t, WithBountyStore(store), WithEscrowLedger(escrow))

	bounty := testBounty()
	bounty.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedBounty(t, store, bounty)

	stats, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Failed != 1 || stats.Escalated != 0 {
		t.Fatalf("expected one failed candidate, got %+v", stats)
	}
}

func TestSweep_WithoutEscrowUsesLinearIncrement(t *testing.T) {
	store := NewMemoryBountyStore()
	svc := newTestService(t, WithBountyStore(store))

	bounty := testBounty()
	bounty.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bounty = seedBounty(t, store, bounty)

	stats, err := svc.Sweep(context.Background())
	if err != nil || stats.Escalated != 1 {
		t.Fatalf("expected linear escalation, got %+v err=%v", stats, err)
	}
	after, _ := store.Get(context.Background(), bounty.ID)
	if after.CurrentAmount != bounty.CurrentAmount+bounty.InitialAmount {
		t.Fatalf("expected amount %d, got %d", bounty.CurrentAmount+bounty.InitialAmount, after.CurrentAmount)
	}
}

func TestEscalateBounty_Manual(t *testing.T) {
	store := NewMemoryBountyStore()
	escrow := &stubEscrowLedger{quote: EscalationQuote{NewAmount: 1500}}
	svc := newTestService(t, WithBountyStore(store), WithEscrowLedger(escrow))

	// Freshly created and far from any schedule threshold.
	bounty := testBounty()
	bounty.CreatedAt = time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	bounty = seedBounty(t, store, bounty)

	escalated, err := svc.EscalateBounty(context.Background(), bounty.ID)
	if err != nil {
		t.Fatalf("manual escalation: %v", err)
	}
	if escalated.CurrentAmount != 1500 || escalated.EscalationCount != 1 {
		t.Fatalf("expected manual escalation applied, got %+v", escalated)
	}
}

func TestEscalateBounty_RefusesTerminalAndCapped(t *testing.T) {
	store := NewMemoryBountyStore()
	svc := newTestService(t, WithBountyStore(store))

	claimed := testBounty()
	claimed.ID = 1
	claimed.Status = BountyStatusClaimed
	seedBounty(t, store, claimed)

	if _, err := svc.EscalateBounty(context.Background(), claimed.ID); !errors.Is(err, ErrEscalationSkipped) {
		t.Fatalf("expected skip for claimed bounty, got: %v", err)
	}

	capped := testBounty()
	capped.ID = 2
	capped.IssueID = 43
	capped.CurrentAmount = capped.MaxAmount
	seedBounty(t, store, capped)

	if _, err := svc.EscalateBounty(context.Background(), capped.ID); !errors.Is(err, ErrEscalationSkipped) {
		t.Fatalf("expected skip for capped bounty, got: %v", err)
	}
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	store := NewMemoryBountyStore()
	svc := newTestService(t, WithBountyStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.RunSweeper(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected sweeper to stop after cancel")
	}
}
