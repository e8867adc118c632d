package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/core"
	"github.com/uptrace/bun"
)

// BountyStore is the durable bounty backend. CompareAndTransition is a single
// conditional UPDATE guarded by the expected status, so two racing writers can
// never both move the same row.
type BountyStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewBountyStore(db *bun.DB) (*BountyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &BountyStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Put inserts a new bounty when the ID is zero and replaces the record
// otherwise. Mutations of live records go through CompareAndTransition.
func (s *BountyStore) Put(ctx context.Context, bounty core.Bounty) (core.Bounty, error) {
	if s == nil || s.db == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: bounty store is not configured")
	}
	if err := bounty.Validate(); err != nil {
		return core.Bounty{}, err
	}

	now := s.now()
	if bounty.CreatedAt.IsZero() {
		bounty.CreatedAt = now
	}
	bounty.UpdatedAt = now

	record := bountyToRecord(bounty)
	if bounty.ID == 0 {
		if _, err := s.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
			return core.Bounty{}, err
		}
		bounty.ID = record.ID
		return bounty, nil
	}

	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("repository = EXCLUDED.repository").
		Set("issue_id = EXCLUDED.issue_id").
		Set("issue_url = EXCLUDED.issue_url").
		Set("initial_amount = EXCLUDED.initial_amount").
		Set("current_amount = EXCLUDED.current_amount").
		Set("max_amount = EXCLUDED.max_amount").
		Set("status = EXCLUDED.status").
		Set("solver_address = EXCLUDED.solver_address").
		Set("claimed_amount = EXCLUDED.claimed_amount").
		Set("payment_reference = EXCLUDED.payment_reference").
		Set("pull_request_url = EXCLUDED.pull_request_url").
		Set("escalation_count = EXCLUDED.escalation_count").
		Set("last_escalated_at = EXCLUDED.last_escalated_at").
		Set("metadata = EXCLUDED.metadata").
		Set("claimed_at = EXCLUDED.claimed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return core.Bounty{}, err
	}
	return bounty, nil
}

func (s *BountyStore) Get(ctx context.Context, id int64) (core.Bounty, error) {
	if s == nil || s.db == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: bounty store is not configured")
	}
	record := &bountyRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Bounty{}, fmt.Errorf("sqlstore: bounty %d: %w", id, core.ErrBountyNotFound)
		}
		return core.Bounty{}, err
	}
	return bountyToDomain(record), nil
}

func (s *BountyStore) FindActiveByIssue(ctx context.Context, repository string, issueID int) (core.Bounty, error) {
	if s == nil || s.db == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: bounty store is not configured")
	}
	repository = strings.TrimSpace(repository)
	if repository == "" {
		return core.Bounty{}, fmt.Errorf("sqlstore: repository is required")
	}
	record := &bountyRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.repository = ?", repository).
		Where("?TableAlias.issue_id = ?", issueID).
		Where("?TableAlias.status = ?", string(core.BountyStatusActive)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Bounty{}, fmt.Errorf(
				"sqlstore: active bounty for %s#%d: %w",
				repository, issueID, core.ErrBountyNotFound,
			)
		}
		return core.Bounty{}, err
	}
	return bountyToDomain(record), nil
}

func (s *BountyStore) FindEscalationCandidates(ctx context.Context) ([]core.Bounty, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: bounty store is not configured")
	}
	var records []*bountyRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.BountyStatusActive)).
		Where("?TableAlias.current_amount < ?TableAlias.max_amount").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]core.Bounty, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, bountyToDomain(record))
	}
	return candidates, nil
}

func (s *BountyStore) CompareAndTransition(
	ctx context.Context,
	id int64,
	expected core.BountyStatus,
	mutation core.BountyMutation,
) (core.Bounty, error) {
	if s == nil || s.db == nil {
		return core.Bounty{}, fmt.Errorf("sqlstore: bounty store is not configured")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return core.Bounty{}, err
	}
	if current.Status != expected {
		return core.Bounty{}, fmt.Errorf("sqlstore: bounty %d expected status %q, found %q: %w",
			id, expected, current.Status, core.ErrStatusConflict)
	}

	next, err := mutation.Apply(current, s.now())
	if err != nil {
		return core.Bounty{}, err
	}
	if err := next.Validate(); err != nil {
		return core.Bounty{}, err
	}
	next.UpdatedAt = s.now()

	record := bountyToRecord(next)
	result, err := s.db.NewUpdate().
		Model((*bountyRecord)(nil)).
		Set("current_amount = ?", record.CurrentAmount).
		Set("status = ?", record.Status).
		Set("solver_address = ?", record.SolverAddress).
		Set("claimed_amount = ?", record.ClaimedAmount).
		Set("payment_reference = ?", record.PaymentReference).
		Set("pull_request_url = ?", record.PullRequestURL).
		Set("escalation_count = ?", record.EscalationCount).
		Set("last_escalated_at = ?", record.LastEscalatedAt).
		Set("claimed_at = ?", record.ClaimedAt).
		Set("updated_at = ?", record.UpdatedAt).
		Where("id = ?", id).
		Where("status = ?", string(expected)).
		Exec(ctx)
	if err != nil {
		return core.Bounty{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Bounty{}, err
	}
	if affected == 0 {
		// The row moved between the read and the guarded write.
		latest, getErr := s.Get(ctx, id)
		if getErr != nil {
			return core.Bounty{}, getErr
		}
		return core.Bounty{}, fmt.Errorf("sqlstore: bounty %d expected status %q, found %q: %w",
			id, expected, latest.Status, core.ErrStatusConflict)
	}
	return next, nil
}

func bountyToRecord(bounty core.Bounty) *bountyRecord {
	record := &bountyRecord{
		ID:              bounty.ID,
		Repository:      bounty.Repository,
		IssueID:         bounty.IssueID,
		IssueURL:        bounty.IssueURL,
		InitialAmount:   bounty.InitialAmount,
		CurrentAmount:   bounty.CurrentAmount,
		MaxAmount:       bounty.MaxAmount,
		Status:          string(bounty.Status),
		SolverAddress:   bounty.SolverAddress,
		ClaimedAmount:   bounty.ClaimedAmount,
		PullRequestURL:  bounty.PullRequestURL,
		EscalationCount: bounty.EscalationCount,
		Metadata:        copyAnyMap(bounty.Metadata),
		CreatedAt:       bounty.CreatedAt,
		UpdatedAt:       bounty.UpdatedAt,
	}
	if strings.TrimSpace(bounty.PaymentReference) != "" {
		reference := bounty.PaymentReference
		record.PaymentReference = &reference
	}
	record.LastEscalatedAt = cloneTime(bounty.LastEscalatedAt)
	record.ClaimedAt = cloneTime(bounty.ClaimedAt)
	return record
}

func bountyToDomain(record *bountyRecord) core.Bounty {
	if record == nil {
		return core.Bounty{}
	}
	bounty := core.Bounty{
		ID:              record.ID,
		Repository:      record.Repository,
		IssueID:         record.IssueID,
		IssueURL:        record.IssueURL,
		InitialAmount:   record.InitialAmount,
		CurrentAmount:   record.CurrentAmount,
		MaxAmount:       record.MaxAmount,
		Status:          core.BountyStatus(record.Status),
		SolverAddress:   record.SolverAddress,
		ClaimedAmount:   record.ClaimedAmount,
		PullRequestURL:  record.PullRequestURL,
		EscalationCount: record.EscalationCount,
		Metadata:        copyAnyMap(record.Metadata),
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
	if record.PaymentReference != nil {
		bounty.PaymentReference = *record.PaymentReference
	}
	bounty.LastEscalatedAt = cloneTime(record.LastEscalatedAt)
	bounty.ClaimedAt = cloneTime(record.ClaimedAt)
	return bounty
}

func cloneTime(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

var _ core.BountyStore = (*BountyStore)(nil)
