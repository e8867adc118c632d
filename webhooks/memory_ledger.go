package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDeliveryLedger is the in-process DeliveryLedger used by tests and
// single-node deployments. The SQL ledger carries the same semantics
// durably.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]*DeliveryRecord
	byClaim map[string]string
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]*DeliveryRecord{},
		byClaim: map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func deliveryKey(surface, deliveryID string) string {
	return surface + ":" + deliveryID
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	surface string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	surface = strings.TrimSpace(surface)
	deliveryID = strings.TrimSpace(deliveryID)
	if surface == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: surface and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := deliveryKey(surface, deliveryID)
	if existing, ok := l.records[key]; ok {
		expired := existing.Status == DeliveryStatusProcessing &&
			now.Sub(existing.UpdatedAt) > lease
		retryDue := existing.Status == DeliveryStatusRetryReady &&
			(existing.NextAttemptAt == nil || !now.Before(*existing.NextAttemptAt))
		if !expired && !retryDue {
			return *existing, false, nil
		}
		delete(l.byClaim, existing.ClaimID)
		existing.ClaimID = uuid.NewString()
		existing.Status = DeliveryStatusProcessing
		existing.Attempts++
		existing.NextAttemptAt = nil
		existing.UpdatedAt = now
		l.byClaim[existing.ClaimID] = key
		return *existing, true, nil
	}

	record := &DeliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		Surface:    surface,
		DeliveryID: deliveryID,
		Status:     DeliveryStatusProcessing,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.records[key] = record
	l.byClaim[record.ClaimID] = key
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, surface string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[deliveryKey(strings.TrimSpace(surface), strings.TrimSpace(deliveryID))]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %s/%s not found", surface, deliveryID)
	}
	return *record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.claimedRecordLocked(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, _ error, nextAttemptAt time.Time, maxAttempts int) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.claimedRecordLocked(claimID)
	if err != nil {
		return err
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		record.Status = DeliveryStatusRetryReady
		next := nextAttemptAt.UTC()
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) claimedRecordLocked(claimID string) (*DeliveryRecord, error) {
	key, ok := l.byClaim[strings.TrimSpace(claimID)]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim %q not found", claimID)
	}
	record, ok := l.records[key]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim %q points at a missing delivery", claimID)
	}
	return record, nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
