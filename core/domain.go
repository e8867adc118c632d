package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidBountyStatusTransition = errors.New("core: invalid bounty status transition")
	ErrInvalidBountyAmounts          = errors.New("core: invalid bounty amounts")
	ErrBountyNotFound                = errors.New("core: bounty not found")
	ErrStatusConflict                = errors.New("core: bounty status conflict")
)

type BountyStatus string

const (
	BountyStatusActive    BountyStatus = "active"
	BountyStatusClaiming  BountyStatus = "claiming"
	BountyStatusClaimed   BountyStatus = "claimed"
	BountyStatusCancelled BountyStatus = "cancelled"
	BountyStatusExpired   BountyStatus = "expired"
)

// DefaultEscalationSchedule is the age thresholds, in hours, at which an
// unclaimed bounty becomes eligible for another escalation.
var DefaultEscalationSchedule = []int{24, 72, 168}

// MinEscalationGapHours bounds how often a single bounty may escalate even
// when the sweep runs more than once per day.
const MinEscalationGapHours = 24

type Bounty struct {
	ID               int64
	Repository       string
	IssueID          int
	IssueURL         string
	InitialAmount    int64
	CurrentAmount    int64
	MaxAmount        int64
	Status           BountyStatus
	SolverAddress    string
	ClaimedAmount    int64
	PaymentReference string
	PullRequestURL   string
	EscalationCount  int
	LastEscalatedAt  *time.Time
	Metadata         map[string]any
	CreatedAt        time.Time
	ClaimedAt        *time.Time
	UpdatedAt        time.Time
}

func (b Bounty) Validate() error {
	if strings.TrimSpace(b.Repository) == "" {
		return fmt.Errorf("core: bounty repository is required")
	}
	if b.IssueID <= 0 {
		return fmt.Errorf("core: bounty issue id is required")
	}
	if b.InitialAmount <= 0 || b.CurrentAmount < b.InitialAmount || b.MaxAmount < b.CurrentAmount {
		return fmt.Errorf(
			"%w: initial=%d current=%d max=%d",
			ErrInvalidBountyAmounts,
			b.InitialAmount,
			b.CurrentAmount,
			b.MaxAmount,
		)
	}
	return nil
}

// Terminal reports whether the bounty has reached a state no component may
// write past. The store's compare-and-transition is the authoritative guard;
// this is the in-memory mirror of the same rule.
func (b Bounty) Terminal() bool {
	switch b.Status {
	case BountyStatusClaimed, BountyStatusCancelled, BountyStatusExpired:
		return true
	}
	return false
}

func (b *Bounty) TransitionTo(status BountyStatus, now time.Time) error {
	if b == nil {
		return nil
	}
	if b.Status == status {
		if status != BountyStatusActive {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidBountyStatusTransition, b.Status, status)
		}
		// Active -> Active is the escalation self-loop.
		b.UpdatedAt = now
		return nil
	}
	if !bountyTransitionAllowed(b.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidBountyStatusTransition, b.Status, status)
	}
	b.Status = status
	b.UpdatedAt = now
	return nil
}

func bountyTransitionAllowed(current, next BountyStatus) bool {
	allowed := map[BountyStatus]map[BountyStatus]struct{}{
		BountyStatusActive: {
			BountyStatusClaiming:  {},
			BountyStatusCancelled: {},
			BountyStatusExpired:   {},
		},
		BountyStatusClaiming: {
			BountyStatusClaimed: {},
			BountyStatusActive:  {},
		},
		BountyStatusClaimed:   {},
		BountyStatusCancelled: {},
		BountyStatusExpired:   {},
	}
	_, ok := allowed[current][next]
	return ok
}

// HoursElapsed reports full hours since creation.
func (b Bounty) HoursElapsed(now time.Time) int {
	if b.CreatedAt.IsZero() || now.Before(b.CreatedAt) {
		return 0
	}
	return int(now.Sub(b.CreatedAt).Hours())
}

// HoursSinceLastEscalation falls back to bounty age when the bounty has never
// escalated.
func (b Bounty) HoursSinceLastEscalation(now time.Time) int {
	if b.LastEscalatedAt == nil {
		return b.HoursElapsed(now)
	}
	if now.Before(*b.LastEscalatedAt) {
		return 0
	}
	return int(now.Sub(*b.LastEscalatedAt).Hours())
}

// EligibleForEscalation applies the threshold schedule: the bounty must still
// be active with headroom below its cap, must have aged past at least one
// schedule threshold, and must not have escalated within the minimum gap.
func (b Bounty) EligibleForEscalation(schedule []int, now time.Time) bool {
	if b.Status != BountyStatusActive {
		return false
	}
	if b.CurrentAmount >= b.MaxAmount {
		return false
	}
	if len(schedule) == 0 {
		schedule = DefaultEscalationSchedule
	}
	hoursElapsed := b.HoursElapsed(now)
	sinceLast := b.HoursSinceLastEscalation(now)
	for _, threshold := range schedule {
		if hoursElapsed >= threshold && sinceLast >= MinEscalationGapHours {
			return true
		}
	}
	return false
}

// BountyMutation is the closed set of fields a compare-and-transition may
// change. Provenance fields (repository, issue, creation time) are immutable
// and deliberately absent.
type BountyMutation struct {
	Status           BountyStatus
	SolverAddress    string
	ClaimedAmount    int64
	PaymentReference string
	PullRequestURL   string
	CurrentAmount    int64
	EscalationCount  int
	LastEscalatedAt  *time.Time
	ClaimedAt        *time.Time
}

// NewReservationMutation moves an active bounty into the transient claiming
// state that guards the payment call.
func NewReservationMutation(solverAddress, pullRequestURL string) BountyMutation {
	return BountyMutation{
		Status:         BountyStatusClaiming,
		SolverAddress:  strings.TrimSpace(solverAddress),
		PullRequestURL: strings.TrimSpace(pullRequestURL),
	}
}

// NewClaimMutation finalizes a reserved bounty after the payment provider
// confirmed a transaction reference.
func NewClaimMutation(b Bounty, paymentReference string, now time.Time) BountyMutation {
	claimedAt := now
	return BountyMutation{
		Status:           BountyStatusClaimed,
		SolverAddress:    b.SolverAddress,
		ClaimedAmount:    b.CurrentAmount,
		PaymentReference: strings.TrimSpace(paymentReference),
		PullRequestURL:   b.PullRequestURL,
		CurrentAmount:    b.CurrentAmount,
		EscalationCount:  b.EscalationCount,
		LastEscalatedAt:  b.LastEscalatedAt,
		ClaimedAt:        &claimedAt,
	}
}

// NewReleaseMutation rolls a reservation back to active after payment failed.
func NewReleaseMutation(b Bounty) BountyMutation {
	return BountyMutation{
		Status:          BountyStatusActive,
		CurrentAmount:   b.CurrentAmount,
		EscalationCount: b.EscalationCount,
		LastEscalatedAt: b.LastEscalatedAt,
	}
}

// NewEscalationMutation applies an escrow ledger quote as the active->active
// self-loop: amount and escalation bookkeeping change, status does not.
func NewEscalationMutation(b Bounty, newAmount int64, now time.Time) BountyMutation {
	if newAmount > b.MaxAmount {
		newAmount = b.MaxAmount
	}
	escalatedAt := now
	return BountyMutation{
		Status:          BountyStatusActive,
		CurrentAmount:   newAmount,
		EscalationCount: b.EscalationCount + 1,
		LastEscalatedAt: &escalatedAt,
	}
}

// Apply copies the mutation onto a bounty snapshot, guarding the transition.
// Store backends replicate this as a single conditional write; Apply exists
// so the memory backend and the SQL record mapping share the exact field set.
func (m BountyMutation) Apply(b Bounty, now time.Time) (Bounty, error) {
	out := b
	if err := out.TransitionTo(m.Status, now); err != nil {
		return Bounty{}, err
	}
	switch m.Status {
	case BountyStatusClaiming:
		out.SolverAddress = m.SolverAddress
		out.PullRequestURL = m.PullRequestURL
	case BountyStatusClaimed:
		out.SolverAddress = m.SolverAddress
		out.ClaimedAmount = m.ClaimedAmount
		out.PaymentReference = m.PaymentReference
		out.PullRequestURL = m.PullRequestURL
		out.ClaimedAt = m.ClaimedAt
	case BountyStatusActive:
		out.SolverAddress = ""
		out.PullRequestURL = m.PullRequestURL
		if m.CurrentAmount > 0 {
			out.CurrentAmount = m.CurrentAmount
		}
		if m.EscalationCount > out.EscalationCount {
			out.EscalationCount = m.EscalationCount
		}
		if m.LastEscalatedAt != nil {
			out.LastEscalatedAt = m.LastEscalatedAt
		}
	}
	return out, nil
}
