package core

import (
	"context"
	"fmt"
)

// CancelBounty retires an active bounty without payment. Terminal states
// refuse the transition through the store's status guard.
func (s *Service) CancelBounty(ctx context.Context, bountyID int64) (Bounty, error) {
	return s.retireBounty(ctx, bountyID, BountyStatusCancelled, "bounty_cancel")
}

// ExpireBounty retires an active bounty that aged out of its funding window.
func (s *Service) ExpireBounty(ctx context.Context, bountyID int64) (Bounty, error) {
	return s.retireBounty(ctx, bountyID, BountyStatusExpired, "bounty_expire")
}

func (s *Service) retireBounty(ctx context.Context, bountyID int64, target BountyStatus, operation string) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	fields := map[string]any{"bounty_id": bountyID}

	retired, err := s.store.CompareAndTransition(ctx, bountyID, BountyStatusActive,
		BountyMutation{Status: target})
	s.observeOperation(ctx, startedAt, operation, err, fields)
	if err != nil {
		return Bounty{}, s.mapError(err)
	}
	return retired, nil
}

// NoteIssueClosed records a manual close of a bountied issue. The bounty
// stays active: a close without a merged fix is not a claim, and operators
// retire it through the cancel path if they mean to.
func (s *Service) NoteIssueClosed(ctx context.Context, repository string, issueID int) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	bounty, err := s.store.FindActiveByIssue(ctx, repository, issueID)
	if err != nil {
		return nil
	}
	s.logWarn(ctx, "bountied issue closed without a claim", map[string]any{
		"repository": repository,
		"issue_id":   issueID,
		"bounty_id":  bounty.ID,
		"amount":     bounty.CurrentAmount,
	})
	return nil
}

func (s *Service) GetBounty(ctx context.Context, bountyID int64) (Bounty, error) {
	if s == nil {
		return Bounty{}, fmt.Errorf("core: service is nil")
	}
	bounty, err := s.store.Get(ctx, bountyID)
	if err != nil {
		return Bounty{}, s.mapError(err)
	}
	return bounty, nil
}

func (s *Service) ListEscalationCandidates(ctx context.Context) ([]Bounty, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	candidates, err := s.store.FindEscalationCandidates(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return candidates, nil
}

// WalletBalance surfaces the payment provider's funding balance for the
// operator read surface.
func (s *Service) WalletBalance(ctx context.Context) (Balance, error) {
	if s == nil {
		return Balance{}, fmt.Errorf("core: service is nil")
	}
	if s.paymentProvider == nil {
		return Balance{}, s.mapError(fmt.Errorf("core: payment provider is not configured"))
	}
	balance, err := s.paymentProvider.GetBalance(ctx)
	if err != nil {
		return Balance{}, s.mapError(err)
	}
	return balance, nil
}
