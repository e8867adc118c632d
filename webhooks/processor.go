package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/core"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	Surface       string
	DeliveryID    string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger is the durable dedupe boundary: Claim either records a new
// delivery or reports it already seen. The replay ledger in front of it is a
// cheap best-effort filter; this one is authoritative.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		surface string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, surface string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type DeliveryIDExtractor func(req core.InboundRequest) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type Handler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type Processor struct {
	Verifier    Verifier
	Replay      core.ReplayLedger
	Ledger      DeliveryLedger
	Handler     Handler
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	ReplayTTL   time.Duration
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
	Logger      core.Logger
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler Handler) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		ExtractID:   HeaderDeliveryIDExtractor("X-GitHub-Delivery"),
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Process runs one delivery through verify, dedupe, and handling. The result
// status codes follow webhook ingress semantics: 200 for accepted or deduped
// deliveries, 401 for bad signatures, anything else surfaces as an error the
// HTTP layer turns into a 500 so the sender retries.
func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: processor requires handler and ledger")
	}

	surface := strings.TrimSpace(req.Surface)
	if surface == "" {
		surface = "github"
	}
	req.Surface = surface

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"surface":  surface,
					"rejected": true,
				},
			}, err
		}
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = HeaderDeliveryIDExtractor("X-GitHub-Delivery")
	}
	deliveryID, err := extractor(req)
	if err != nil {
		return core.InboundResult{}, err
	}

	if p.Replay != nil {
		fresh, replayErr := p.Replay.Claim(ctx, surface+":"+deliveryID, p.ReplayTTL)
		if replayErr != nil {
			return core.InboundResult{}, replayErr
		}
		if !fresh {
			return core.InboundResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"surface":     surface,
					"delivery_id": deliveryID,
					"deduped":     true,
					"replay":      true,
				},
			}, nil
		}
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, surface, deliveryID, req.Body, p.claimLease())
	if err != nil {
		return core.InboundResult{}, err
	}
	if !claimed {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"surface":     surface,
				"delivery_id": delivery.DeliveryID,
				"status":      delivery.Status,
				"deduped":     true,
			},
		}, nil
	}

	result, err := p.Handler.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, core.ErrMalformedEvent) {
			// A broken payload never becomes parseable: redelivery would
			// burn attempts on the same bytes. Log, complete, answer 200.
			p.logWarn(ctx, "ignoring malformed webhook payload", map[string]any{
				"surface":     surface,
				"delivery_id": deliveryID,
				"error":       err.Error(),
			})
			if completeErr := p.Ledger.Complete(ctx, delivery.ClaimID); completeErr != nil {
				return core.InboundResult{}, completeErr
			}
			return core.InboundResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"surface":     surface,
					"delivery_id": deliveryID,
					"ignored":     true,
					"malformed":   true,
				},
			}, nil
		}
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt, p.maxAttempts())
		return core.InboundResult{}, err
	}

	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := fmt.Errorf("webhooks: delivery handler returned retryable status %d", result.StatusCode)
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, retryErr, nextAttemptAt, p.maxAttempts())
		return result, retryErr
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return core.InboundResult{}, err
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["surface"] = surface
	result.Metadata["delivery_id"] = deliveryID
	return result, nil
}

func (p *Processor) logWarn(ctx context.Context, msg string, fields map[string]any) {
	if p == nil || p.Logger == nil {
		return
	}
	logger := p.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	logger.Warn(msg, args...)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
