package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type bountyRecord struct {
	bun.BaseModel `bun:"table:bounties,alias:b"`

	ID               int64          `bun:"id,pk,autoincrement"`
	Repository       string         `bun:"repository,notnull"`
	IssueID          int            `bun:"issue_id,notnull"`
	IssueURL         string         `bun:"issue_url"`
	InitialAmount    int64          `bun:"initial_amount,notnull"`
	CurrentAmount    int64          `bun:"current_amount,notnull"`
	MaxAmount        int64          `bun:"max_amount,notnull"`
	Status           string         `bun:"status,notnull"`
	SolverAddress    string         `bun:"solver_address"`
	ClaimedAmount    int64          `bun:"claimed_amount"`
	PaymentReference *string        `bun:"payment_reference"`
	PullRequestURL   string         `bun:"pull_request_url"`
	EscalationCount  int            `bun:"escalation_count"`
	LastEscalatedAt  *time.Time     `bun:"last_escalated_at,nullzero"`
	Metadata         map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ClaimedAt        *time.Time     `bun:"claimed_at,nullzero"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID             string     `bun:"id,pk"`
	ClaimID        string     `bun:"claim_id,notnull"`
	Surface        string     `bun:"surface,notnull"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	LastError      string     `bun:"last_error"`
	Payload        []byte     `bun:"payload"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type notificationDispatchRecord struct {
	bun.BaseModel `bun:"table:notification_dispatches,alias:nd"`

	ID          string    `bun:"id,pk"`
	EventID     string    `bun:"event_id,notnull"`
	Kind        string    `bun:"kind,notnull"`
	Repository  string    `bun:"repository"`
	IssueNumber int       `bun:"issue_number"`
	Idempotency string    `bun:"idempotency_key,notnull"`
	Status      string    `bun:"status,notnull"`
	Error       string    `bun:"error"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func copyAnyMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
