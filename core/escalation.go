package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sweep examines every escalation candidate once and escalates the eligible
// ones. A CAS conflict on a candidate means another flow touched the bounty
// mid-sweep; the candidate is skipped without error. The sweep itself only
// fails when the candidate query fails.
func (s *Service) Sweep(ctx context.Context) (SweepStats, error) {
	if s == nil {
		return SweepStats{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()

	candidates, err := s.store.FindEscalationCandidates(ctx)
	if err != nil {
		s.observeOperation(ctx, startedAt, "escalation_sweep", err, nil)
		return SweepStats{}, s.mapError(err)
	}

	stats := SweepStats{Examined: len(candidates)}
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		if !candidate.EligibleForEscalation(s.config.Escalation.ScheduleHours, s.now()) {
			stats.Skipped++
			continue
		}
		if _, err := s.escalateCandidate(ctx, candidate); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				stats.Skipped++
				continue
			}
			stats.Failed++
			s.logError(ctx, "bounty escalation failed", map[string]any{
				"bounty_id": candidate.ID,
				"error":     err.Error(),
			})
			continue
		}
		stats.Escalated++
	}

	s.observeOperation(ctx, startedAt, "escalation_sweep", nil, map[string]any{
		"examined":  stats.Examined,
		"escalated": stats.Escalated,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
	})
	return stats, nil
}

// EscalateBounty escalates a single bounty on demand, bypassing the schedule
// eligibility gate but never the amount cap or the status guard.
func (s *Service) EscalateBounty(ctx context.Context, bountyID int64) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()

	bounty, err := s.store.Get(ctx, bountyID)
	if err != nil {
		return Bounty{}, s.mapError(err)
	}
	if bounty.Status != BountyStatusActive {
		err := fmt.Errorf("core: bounty %d is %s: %w", bountyID, bounty.Status, ErrEscalationSkipped)
		s.observeOperation(ctx, startedAt, "manual_escalation", err, map[string]any{"bounty_id": bountyID})
		return Bounty{}, s.mapError(err)
	}
	if bounty.CurrentAmount >= bounty.MaxAmount {
		err := fmt.Errorf("core: bounty %d already at max amount: %w", bountyID, ErrEscalationSkipped)
		s.observeOperation(ctx, startedAt, "manual_escalation", err, map[string]any{"bounty_id": bountyID})
		return Bounty{}, s.mapError(err)
	}

	escalated, err := s.escalateCandidate(ctx, bounty)
	s.observeOperation(ctx, startedAt, "manual_escalation", err, map[string]any{"bounty_id": bountyID})
	if err != nil {
		return Bounty{}, s.mapError(err)
	}
	return escalated, nil
}

func (s *Service) escalateCandidate(ctx context.Context, bounty Bounty) (Bounty, error) {
	newAmount := bounty.CurrentAmount
	reference := ""
	if s.escrow != nil {
		quote, err := s.escrow.Escalate(ctx, bounty.ID)
		if err != nil {
			return Bounty{}, fmt.Errorf("core: escrow quote for bounty %d: %w", bounty.ID, err)
		}
		newAmount = quote.NewAmount
		reference = quote.Reference
	} else {
		// Without an escrow backend the schedule still advances the amount
		// linearly by one initial increment.
		newAmount = bounty.CurrentAmount + bounty.InitialAmount
	}

	escalated, err := s.store.CompareAndTransition(ctx, bounty.ID, BountyStatusActive,
		NewEscalationMutation(bounty, newAmount, s.now()))
	if err != nil {
		return Bounty{}, err
	}

	s.publishEscalated(ctx, escalated, EscalationQuote{
		BountyID:  escalated.ID,
		OldAmount: bounty.CurrentAmount,
		NewAmount: escalated.CurrentAmount,
		Reference: reference,
	})
	return escalated, nil
}

func (s *Service) publishEscalated(ctx context.Context, bounty Bounty, quote EscalationQuote) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEscalated(ctx, EscalationNotice{Bounty: bounty, Quote: quote}); err != nil {
		s.logWarn(ctx, "escalation notification failed", map[string]any{
			"bounty_id": bounty.ID,
			"error":     err.Error(),
		})
	}
}

// RunSweeper runs the sweep on the configured interval until the context is
// cancelled. An in-flight sweep finishes its current bounty write before the
// runner observes cancellation between candidates.
func (s *Service) RunSweeper(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	interval := s.config.Escalation.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logError(ctx, "escalation sweep failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}
