package query

import "fmt"

const (
	TypeGetBounty                = "bounty.query.get"
	TypeListEscalationCandidates = "bounty.query.escalation_candidates"
	TypeWalletBalance            = "bounty.query.wallet_balance"
)

type GetBountyMessage struct {
	BountyID int64
}

func (GetBountyMessage) Type() string { return TypeGetBounty }

func (m GetBountyMessage) Validate() error {
	if m.BountyID <= 0 {
		return fmt.Errorf("query: bounty id is required")
	}
	return nil
}

type ListEscalationCandidatesMessage struct{}

func (ListEscalationCandidatesMessage) Type() string { return TypeListEscalationCandidates }

func (ListEscalationCandidatesMessage) Validate() error { return nil }

type WalletBalanceMessage struct{}

func (WalletBalanceMessage) Type() string { return TypeWalletBalance }

func (WalletBalanceMessage) Validate() error { return nil }
