package query

import (
	"github.com/goliatone/go-bounty/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetBountyMessage, core.Bounty]                  = (*GetBountyQuery)(nil)
	_ gocmd.Querier[ListEscalationCandidatesMessage, []core.Bounty] = (*ListEscalationCandidatesQuery)(nil)
	_ gocmd.Querier[WalletBalanceMessage, core.Balance]             = (*WalletBalanceQuery)(nil)
)
