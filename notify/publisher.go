package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/core"
	"github.com/google/uuid"
)

const (
	KindClaimSucceeded = "claim_succeeded"
	KindAddressRequest = "address_request"
	KindAddressInvalid = "address_invalid"
	KindPaymentFailed  = "payment_failed"
	KindEscalated      = "escalated"

	dispatchStatusSent   = "sent"
	dispatchStatusFailed = "failed"
)

// Publisher posts lifecycle comments back to the code host. Publishing is
// best effort: the code host is not authoritative for money movement, so a
// failed comment is logged and recorded but never surfaces as an error.
// The dispatch ledger keeps replayed deliveries from double-commenting.
type Publisher struct {
	host   core.CodeHostClient
	ledger core.NotificationDispatchLedger
	logger core.Logger
	now    func() time.Time
}

type PublisherOption func(*Publisher)

func WithDispatchLedger(ledger core.NotificationDispatchLedger) PublisherOption {
	return func(p *Publisher) {
		if ledger != nil {
			p.ledger = ledger
		}
	}
}

func WithLogger(logger core.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(host core.CodeHostClient, options ...PublisherOption) (*Publisher, error) {
	if host == nil {
		return nil, fmt.Errorf("notify: code host client is required")
	}
	publisher := &Publisher{
		host: host,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		if option != nil {
			option(publisher)
		}
	}
	return publisher, nil
}

func (p *Publisher) PublishClaimSucceeded(ctx context.Context, notice core.ClaimNotice) error {
	qualifier := notice.Receipt.TransactionID
	if qualifier == "" {
		qualifier = notice.Bounty.PaymentReference
	}
	return p.publish(ctx, dispatch{
		Kind:        KindClaimSucceeded,
		Repository:  notice.Bounty.Repository,
		IssueNumber: notice.Bounty.IssueID,
		Qualifier:   qualifier,
		Body:        claimSucceededComment(notice),
	})
}

// PublishAddressRequest comments on the pull request, not the issue: the
// solver being asked for an address is the PR author.
func (p *Publisher) PublishAddressRequest(ctx context.Context, notice core.ClaimNotice) error {
	return p.publish(ctx, dispatch{
		Kind:        KindAddressRequest,
		Repository:  notice.Bounty.Repository,
		IssueNumber: notice.PullRequest.Number,
		Qualifier:   fmt.Sprintf("pr-%d", notice.PullRequest.Number),
		Body:        congratulationsComment(notice),
	})
}

func (p *Publisher) PublishAddressInvalid(ctx context.Context, notice core.ClaimNotice) error {
	return p.publish(ctx, dispatch{
		Kind:        KindAddressInvalid,
		Repository:  notice.Bounty.Repository,
		IssueNumber: notice.PullRequest.Number,
		Qualifier:   fmt.Sprintf("pr-%d", notice.PullRequest.Number),
		Body:        invalidAddressComment(notice),
	})
}

func (p *Publisher) PublishPaymentFailed(ctx context.Context, notice core.ClaimNotice) error {
	return p.publish(ctx, dispatch{
		Kind:        KindPaymentFailed,
		Repository:  notice.Bounty.Repository,
		IssueNumber: notice.Bounty.IssueID,
		Qualifier:   fmt.Sprintf("pr-%d", notice.PullRequest.Number),
		Body:        paymentFailedComment(notice),
	})
}

func (p *Publisher) PublishEscalated(ctx context.Context, notice core.EscalationNotice) error {
	qualifier := notice.Quote.Reference
	if qualifier == "" {
		qualifier = fmt.Sprintf("escalation-%d", notice.Bounty.EscalationCount)
	}
	return p.publish(ctx, dispatch{
		Kind:        KindEscalated,
		Repository:  notice.Bounty.Repository,
		IssueNumber: notice.Bounty.IssueID,
		Qualifier:   qualifier,
		Body:        escalatedComment(notice, p.now()),
	})
}

type dispatch struct {
	Kind        string
	Repository  string
	IssueNumber int
	Qualifier   string
	Body        string
}

func (d dispatch) idempotencyKey() string {
	return strings.Join([]string{d.Kind, d.Repository, fmt.Sprintf("%d", d.IssueNumber), d.Qualifier}, "::")
}

func (p *Publisher) publish(ctx context.Context, d dispatch) error {
	if d.Repository == "" || d.IssueNumber <= 0 {
		p.logWarn(ctx, "notification skipped, no comment target", map[string]any{
			"kind":       d.Kind,
			"repository": d.Repository,
		})
		return nil
	}

	key := d.idempotencyKey()
	if p.ledger != nil {
		seen, err := p.ledger.Seen(ctx, key)
		if err != nil {
			p.logWarn(ctx, "dispatch ledger lookup failed", map[string]any{
				"kind":  d.Kind,
				"key":   key,
				"error": err.Error(),
			})
		} else if seen {
			return nil
		}
	}

	record := core.NotificationDispatchRecord{
		EventID:        uuid.NewString(),
		Kind:           d.Kind,
		Repository:     d.Repository,
		IssueNumber:    d.IssueNumber,
		IdempotencyKey: key,
		Status:         dispatchStatusSent,
	}
	if err := p.host.CreateComment(ctx, d.Repository, d.IssueNumber, d.Body); err != nil {
		record.Status = dispatchStatusFailed
		record.Error = err.Error()
		p.logWarn(ctx, "notification comment failed", map[string]any{
			"kind":       d.Kind,
			"repository": d.Repository,
			"issue":      d.IssueNumber,
			"error":      err.Error(),
		})
	}
	p.recordDispatch(ctx, record)
	return nil
}

func (p *Publisher) recordDispatch(ctx context.Context, record core.NotificationDispatchRecord) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Record(ctx, record); err != nil {
		p.logWarn(ctx, "dispatch ledger write failed", map[string]any{
			"kind":  record.Kind,
			"key":   record.IdempotencyKey,
			"error": err.Error(),
		})
	}
}

func (p *Publisher) logWarn(ctx context.Context, msg string, fields map[string]any) {
	if p.logger == nil {
		return
	}
	logger := p.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	logger.Warn(msg, args...)
}

var _ core.NotificationPublisher = (*Publisher)(nil)
