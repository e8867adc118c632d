package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore is the durable delivery ledger. The unique index on
// (surface, delivery_id) makes the first insert win; replays take the unique
// violation path and report the existing record.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	surface string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	surface = strings.TrimSpace(surface)
	deliveryID = strings.TrimSpace(deliveryID)
	if surface == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: surface and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	now := s.now()
	leaseExpiry := now.Add(lease)
	record := &webhookDeliveryRecord{
		ID:             uuid.NewString(),
		ClaimID:        uuid.NewString(),
		Surface:        surface,
		DeliveryID:     deliveryID,
		Status:         webhooks.DeliveryStatusProcessing,
		Attempts:       1,
		LeaseExpiresAt: &leaseExpiry,
		Payload:        append([]byte(nil), payload...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, surface, deliveryID, lease)
	}
	return webhookDeliveryToDomain(record), true, nil
}

// reclaim re-leases a delivery whose previous attempt stalled or whose retry
// window is due. The conditional update is guarded by the old claim id so only
// one caller wins a contested reclaim.
func (s *WebhookDeliveryStore) reclaim(
	ctx context.Context,
	surface string,
	deliveryID string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	existing, err := s.fetch(ctx, surface, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}

	now := s.now()
	reclaimable := false
	switch existing.Status {
	case webhooks.DeliveryStatusProcessing:
		reclaimable = existing.LeaseExpiresAt != nil && existing.LeaseExpiresAt.Before(now)
	case webhooks.DeliveryStatusRetryReady:
		reclaimable = existing.NextAttemptAt == nil || !existing.NextAttemptAt.After(now)
	}
	if !reclaimable {
		return webhookDeliveryToDomain(existing), false, nil
	}

	newClaimID := uuid.NewString()
	leaseExpiry := now.Add(lease)
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", newClaimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = ?", leaseExpiry).
		Set("updated_at = ?", now).
		Where("surface = ?", surface).
		Where("delivery_id = ?", deliveryID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected == 0 {
		latest, getErr := s.fetch(ctx, surface, deliveryID)
		if getErr != nil {
			return webhooks.DeliveryRecord{}, false, getErr
		}
		return webhookDeliveryToDomain(latest), false, nil
	}

	existing.ClaimID = newClaimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.NextAttemptAt = nil
	existing.LeaseExpiresAt = &leaseExpiry
	existing.UpdatedAt = now
	return webhookDeliveryToDomain(existing), true, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	surface string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record, err := s.fetch(ctx, strings.TrimSpace(surface), strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: delivery claim %q is no longer current", claimID)
	}
	return nil
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}

	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlstore: delivery claim %q not found", claimID)
		}
		return err
	}

	status := webhooks.DeliveryStatusRetryReady
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		status = webhooks.DeliveryStatusDead
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	update := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", status).
		Set("last_error = ?", lastError).
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID)
	if status == webhooks.DeliveryStatusRetryReady {
		update = update.Set("next_attempt_at = ?", nextAttemptAt.UTC())
	} else {
		update = update.Set("next_attempt_at = NULL")
	}
	_, err = update.Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) fetch(
	ctx context.Context,
	surface string,
	deliveryID string,
) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.surface = ?", surface).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf(
				"sqlstore: webhook delivery not found for surface %q delivery %q",
				surface, deliveryID,
			)
		}
		return nil, err
	}
	return record, nil
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		Surface:    record.Surface,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	result.NextAttemptAt = cloneTime(record.NextAttemptAt)
	return result
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
