package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestService(t *testing.T, options ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time {
			return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		}),
		WithBackoffScheduler(ExponentialBackoffScheduler{Initial: time.Nanosecond, Max: time.Nanosecond}),
	}
	svc, err := NewService(DefaultConfig(), append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedBounty(t *testing.T, store *MemoryBountyStore, bounty Bounty) Bounty {
	t.Helper()
	seeded, err := store.Put(context.Background(), bounty)
	if err != nil {
		t.Fatalf("seed bounty: %v", err)
	}
	return seeded
}

type stubPaymentProvider struct {
	mu           sync.Mutex
	sendCalls    int
	sentKeys     []string
	sendErr      error
	failuresLeft int
	receipt      PaymentReceipt
	balance      Balance
	validAddress bool
	validateErr  error
}

func (p *stubPaymentProvider) SendPayment(_ context.Context, address string, amount int64, idempotencyKey string) (PaymentReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendCalls++
	p.sentKeys = append(p.sentKeys, idempotencyKey)
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return PaymentReceipt{}, fmt.Errorf("payment: transient network failure")
	}
	if p.sendErr != nil {
		return PaymentReceipt{}, p.sendErr
	}
	receipt := p.receipt
	if receipt.TransactionID == "" {
		receipt.TransactionID = fmt.Sprintf("tx-%s", idempotencyKey)
	}
	receipt.Amount = amount
	receipt.Recipient = address
	return receipt, nil
}

func (p *stubPaymentProvider) GetBalance(context.Context) (Balance, error) {
	return p.balance, nil
}

func (p *stubPaymentProvider) ValidateAddress(context.Context, string) (bool, error) {
	if p.validateErr != nil {
		return false, p.validateErr
	}
	return p.validAddress, nil
}

func (p *stubPaymentProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendCalls
}

type stubCodeHost struct {
	mu           sync.Mutex
	checks       []CheckRun
	checksErr    error
	pullRequest  PullRequest
	comments     []string
	closedIssues []int
}

func (h *stubCodeHost) ListChecksForCommit(context.Context, string, string) ([]CheckRun, error) {
	if h.checksErr != nil {
		return nil, h.checksErr
	}
	return h.checks, nil
}

func (h *stubCodeHost) GetPullRequest(context.Context, string, int) (PullRequest, error) {
	return h.pullRequest, nil
}

func (h *stubCodeHost) CreateComment(_ context.Context, _ string, _ int, body string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.comments = append(h.comments, body)
	return nil
}

func (h *stubCodeHost) CloseIssue(_ context.Context, _ string, issueNumber int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closedIssues = append(h.closedIssues, issueNumber)
	return nil
}

type stubPublisher struct {
	mu          sync.Mutex
	succeeded   []ClaimNotice
	addressReqs []ClaimNotice
	addressBad  []ClaimNotice
	payFailed   []ClaimNotice
	escalated   []EscalationNotice
	publishErr  error
}

func (p *stubPublisher) PublishClaimSucceeded(_ context.Context, notice ClaimNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.succeeded = append(p.succeeded, notice)
	return p.publishErr
}

func (p *stubPublisher) PublishAddressRequest(_ context.Context, notice ClaimNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addressReqs = append(p.addressReqs, notice)
	return p.publishErr
}

func (p *stubPublisher) PublishAddressInvalid(_ context.Context, notice ClaimNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addressBad = append(p.addressBad, notice)
	return p.publishErr
}

func (p *stubPublisher) PublishPaymentFailed(_ context.Context, notice ClaimNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payFailed = append(p.payFailed, notice)
	return p.publishErr
}

func (p *stubPublisher) PublishEscalated(_ context.Context, notice EscalationNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escalated = append(p.escalated, notice)
	return p.publishErr
}

type stubEscrowLedger struct {
	quote    EscalationQuote
	quoteErr error
	calls    int
}

func (l *stubEscrowLedger) Escalate(_ context.Context, bountyID int64) (EscalationQuote, error) {
	l.calls++
	if l.quoteErr != nil {
		return EscalationQuote{}, l.quoteErr
	}
	quote := l.quote
	quote.BountyID = bountyID
	return quote, nil
}
