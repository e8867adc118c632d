package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CancelBountyMessage]   = (*CancelBountyCommand)(nil)
	_ gocmd.Commander[ExpireBountyMessage]   = (*ExpireBountyCommand)(nil)
	_ gocmd.Commander[EscalateBountyMessage] = (*EscalateBountyCommand)(nil)
	_ gocmd.Commander[RunSweepMessage]       = (*RunSweepCommand)(nil)
)
