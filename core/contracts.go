package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// BountyStore owns the authoritative bounty record. CompareAndTransition is
// the sole mutation primitive: it applies the mutation only if the row's
// status still equals expected at write time and returns ErrStatusConflict
// otherwise, with no side effects. Backends must implement it as one atomic
// conditional write, never as read-then-write.
type BountyStore interface {
	Get(ctx context.Context, id int64) (Bounty, error)
	FindActiveByIssue(ctx context.Context, repository string, issueID int) (Bounty, error)
	FindEscalationCandidates(ctx context.Context) ([]Bounty, error)
	CompareAndTransition(
		ctx context.Context,
		id int64,
		expected BountyStatus,
		mutation BountyMutation,
	) (Bounty, error)
}

type PaymentReceipt struct {
	TransactionID string
	Amount        int64
	Recipient     string
}

type Balance struct {
	Address string
	Amount  int64
	Pending int64
}

// PaymentProvider is the payment network boundary. Implementations must treat
// idempotencyKey as the dedupe token: a retried SendPayment with the same key
// must never produce a second transfer.
type PaymentProvider interface {
	SendPayment(ctx context.Context, address string, amount int64, idempotencyKey string) (PaymentReceipt, error)
	GetBalance(ctx context.Context) (Balance, error)
	ValidateAddress(ctx context.Context, address string) (bool, error)
}

type CheckConclusion string

const (
	CheckConclusionSuccess CheckConclusion = "success"
	CheckConclusionSkipped CheckConclusion = "skipped"
	CheckConclusionFailure CheckConclusion = "failure"
)

type CheckRun struct {
	Name       string
	Conclusion CheckConclusion
}

type PullRequest struct {
	Number  int
	Body    string
	HeadSHA string
	HTMLURL string
	Author  string
	Merged  bool
}

type CodeHostClient interface {
	ListChecksForCommit(ctx context.Context, repository string, sha string) ([]CheckRun, error)
	GetPullRequest(ctx context.Context, repository string, number int) (PullRequest, error)
	CreateComment(ctx context.Context, repository string, issueNumber int, body string) error
	CloseIssue(ctx context.Context, repository string, issueNumber int) error
}

type EscalationQuote struct {
	BountyID  int64
	OldAmount int64
	NewAmount int64
	Reference string
}

// EscrowLedger computes escalation amounts. The increase is backend defined
// and monotone; the sweeper caps the result at the bounty's max on apply.
type EscrowLedger interface {
	Escalate(ctx context.Context, bountyID int64) (EscalationQuote, error)
}

type ClaimNotice struct {
	Bounty      Bounty
	PullRequest PullRequest
	Receipt     PaymentReceipt
	Cause       error
}

type EscalationNotice struct {
	Bounty Bounty
	Quote  EscalationQuote
}

// NotificationPublisher posts best-effort comments back to the code host.
// Implementations log and swallow failures: the code host is not
// authoritative for money movement, so a failed comment never affects state.
type NotificationPublisher interface {
	PublishClaimSucceeded(ctx context.Context, notice ClaimNotice) error
	PublishAddressRequest(ctx context.Context, notice ClaimNotice) error
	PublishAddressInvalid(ctx context.Context, notice ClaimNotice) error
	PublishPaymentFailed(ctx context.Context, notice ClaimNotice) error
	PublishEscalated(ctx context.Context, notice EscalationNotice) error
}

// ReplayLedger is the bounded best-effort dedupe window in front of the
// durable delivery ledger. Claim returns false when the key was already seen
// inside its TTL.
type ReplayLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
}

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// JobWorkerHook observes worker lifecycle events for metrics and logging.
type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type InboundRequest struct {
	Surface  string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type SweepStats struct {
	Examined  int
	Escalated int
	Skipped   int
	Failed    int
}

type ClaimOutcome string

const (
	ClaimOutcomeClaimed        ClaimOutcome = "claimed"
	ClaimOutcomeNoBounty       ClaimOutcome = "no_bounty"
	ClaimOutcomeChecksPending  ClaimOutcome = "checks_pending"
	ClaimOutcomeAddressMissing ClaimOutcome = "address_missing"
	ClaimOutcomeAddressInvalid ClaimOutcome = "address_invalid"
	ClaimOutcomeConflict       ClaimOutcome = "conflict"
	ClaimOutcomePaymentFailed  ClaimOutcome = "payment_failed"
)

type ClaimResult struct {
	Outcome ClaimOutcome
	Bounty  Bounty
	Receipt PaymentReceipt
}

// NotificationDispatchRecord tracks one attempted comment publish so replayed
// deliveries never double-comment.
type NotificationDispatchRecord struct {
	EventID        string
	Kind           string
	Repository     string
	IssueNumber    int
	IdempotencyKey string
	Status         string
	Error          string
}

type NotificationDispatchLedger interface {
	Seen(ctx context.Context, idempotencyKey string) (bool, error)
	Record(ctx context.Context, record NotificationDispatchRecord) error
}
