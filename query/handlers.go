package query

import (
	"context"

	"github.com/goliatone/go-bounty/core"
)

type BountyReader interface {
	GetBounty(ctx context.Context, bountyID int64) (core.Bounty, error)
	ListEscalationCandidates(ctx context.Context) ([]core.Bounty, error)
}

type WalletReader interface {
	WalletBalance(ctx context.Context) (core.Balance, error)
}

type GetBountyQuery struct {
	reader BountyReader
}

func NewGetBountyQuery(reader BountyReader) *GetBountyQuery {
	return &GetBountyQuery{reader: reader}
}

func (q *GetBountyQuery) Query(ctx context.Context, msg GetBountyMessage) (core.Bounty, error) {
	if q == nil || q.reader == nil {
		return core.Bounty{}, queryDependencyError("query: bounty reader is required")
	}
	return q.reader.GetBounty(ctx, msg.BountyID)
}

type ListEscalationCandidatesQuery struct {
	reader BountyReader
}

func NewListEscalationCandidatesQuery(reader BountyReader) *ListEscalationCandidatesQuery {
	return &ListEscalationCandidatesQuery{reader: reader}
}

func (q *ListEscalationCandidatesQuery) Query(
	ctx context.Context,
	msg ListEscalationCandidatesMessage,
) ([]core.Bounty, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: bounty reader is required")
	}
	return q.reader.ListEscalationCandidates(ctx)
}

type WalletBalanceQuery struct {
	reader WalletReader
}

func NewWalletBalanceQuery(reader WalletReader) *WalletBalanceQuery {
	return &WalletBalanceQuery{reader: reader}
}

func (q *WalletBalanceQuery) Query(ctx context.Context, msg WalletBalanceMessage) (core.Balance, error) {
	if q == nil || q.reader == nil {
		return core.Balance{}, queryDependencyError("query: wallet reader is required")
	}
	return q.reader.WalletBalance(ctx)
}
