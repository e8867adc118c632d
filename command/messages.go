package command

import (
	"fmt"
)

const (
	TypeCancelBounty   = "bounty.command.cancel"
	TypeExpireBounty   = "bounty.command.expire"
	TypeEscalateBounty = "bounty.command.escalate"
	TypeRunSweep       = "bounty.command.sweep"
)

type CancelBountyMessage struct {
	BountyID int64
	Reason   string
}

func (CancelBountyMessage) Type() string { return TypeCancelBounty }

func (m CancelBountyMessage) Validate() error {
	if m.BountyID <= 0 {
		return fmt.Errorf("command: bounty id is required")
	}
	return nil
}

type ExpireBountyMessage struct {
	BountyID int64
}

func (ExpireBountyMessage) Type() string { return TypeExpireBounty }

func (m ExpireBountyMessage) Validate() error {
	if m.BountyID <= 0 {
		return fmt.Errorf("command: bounty id is required")
	}
	return nil
}

// EscalateBountyMessage requests a single out-of-schedule escalation for one
// bounty, bypassing the sweep eligibility window.
type EscalateBountyMessage struct {
	BountyID int64
}

func (EscalateBountyMessage) Type() string { return TypeEscalateBounty }

func (m EscalateBountyMessage) Validate() error {
	if m.BountyID <= 0 {
		return fmt.Errorf("command: bounty id is required")
	}
	return nil
}

// RunSweepMessage triggers one full escalation sweep outside the scheduled
// interval.
type RunSweepMessage struct{}

func (RunSweepMessage) Type() string { return TypeRunSweep }

func (RunSweepMessage) Validate() error { return nil }
