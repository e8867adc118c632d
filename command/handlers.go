package command

import (
	"context"

	"github.com/goliatone/go-bounty/core"
	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the slice of the bounty service the command surface
// drives. Reads live in the query package.
type MutatingService interface {
	CancelBounty(ctx context.Context, bountyID int64) (core.Bounty, error)
	ExpireBounty(ctx context.Context, bountyID int64) (core.Bounty, error)
	EscalateBounty(ctx context.Context, bountyID int64) (core.Bounty, error)
	Sweep(ctx context.Context) (core.SweepStats, error)
}

type CancelBountyCommand struct {
	service MutatingService
}

func NewCancelBountyCommand(service MutatingService) *CancelBountyCommand {
	return &CancelBountyCommand{service: service}
}

func (c *CancelBountyCommand) Execute(ctx context.Context, msg CancelBountyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: cancel service is required")
	}
	out, err := c.service.CancelBounty(ctx, msg.BountyID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExpireBountyCommand struct {
	service MutatingService
}

func NewExpireBountyCommand(service MutatingService) *ExpireBountyCommand {
	return &ExpireBountyCommand{service: service}
}

func (c *ExpireBountyCommand) Execute(ctx context.Context, msg ExpireBountyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: expire service is required")
	}
	out, err := c.service.ExpireBounty(ctx, msg.BountyID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EscalateBountyCommand struct {
	service MutatingService
}

func NewEscalateBountyCommand(service MutatingService) *EscalateBountyCommand {
	return &EscalateBountyCommand{service: service}
}

func (c *EscalateBountyCommand) Execute(ctx context.Context, msg EscalateBountyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: escalation service is required")
	}
	out, err := c.service.EscalateBounty(ctx, msg.BountyID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunSweepCommand struct {
	service MutatingService
}

func NewRunSweepCommand(service MutatingService) *RunSweepCommand {
	return &RunSweepCommand{service: service}
}

func (c *RunSweepCommand) Execute(ctx context.Context, msg RunSweepMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sweep service is required")
	}
	out, err := c.service.Sweep(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
