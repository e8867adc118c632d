package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/core"
)

// ClaimService is the slice of the bounty service the worker drives.
type ClaimService interface {
	ResolveClaim(ctx context.Context, req core.ClaimRequest) ([]core.ClaimResult, error)
	Sweep(ctx context.Context) (core.SweepStats, error)
}

// ClaimWorker drains the claim queue. Each delivery carries the pull request
// snapshot captured at ingress, so resolution needs no code host round trip
// before hitting the store.
type ClaimWorker struct {
	dequeuer core.JobDequeuer
	service  ClaimService
	policy   RetryPolicy
	hook     core.JobWorkerHook
	logger   core.Logger
	now      func() time.Time
}

type ClaimWorkerOption func(*ClaimWorker)

func WithRetryPolicy(policy RetryPolicy) ClaimWorkerOption {
	return func(w *ClaimWorker) {
		w.policy = policy
	}
}

func WithWorkerHook(hook core.JobWorkerHook) ClaimWorkerOption {
	return func(w *ClaimWorker) {
		if hook != nil {
			w.hook = hook
		}
	}
}

func WithWorkerLogger(logger core.Logger) ClaimWorkerOption {
	return func(w *ClaimWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewClaimWorker(dequeuer core.JobDequeuer, service ClaimService, options ...ClaimWorkerOption) (*ClaimWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if service == nil {
		return nil, fmt.Errorf("gojob: claim service is required")
	}
	worker := &ClaimWorker{
		dequeuer: dequeuer,
		service:  service,
		policy:   RetryPolicy{MaxAttempts: 5, DeadLetterOnMax: true},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		if option != nil {
			option(worker)
		}
	}
	return worker, nil
}

// Run dequeues until the context is cancelled. The in-flight delivery always
// finishes: acknowledgement happens before the loop re-checks the context.
func (w *ClaimWorker) Run(ctx context.Context) error {
	for {
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logWarn(ctx, "dequeue failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		w.Process(ctx, delivery)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Process handles a single delivery and settles it.
func (w *ClaimWorker) Process(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	if msg == nil {
		_ = delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "empty delivery"})
		return
	}

	started := w.now()
	event := core.JobWorkerEvent{Message: msg, StartedAt: started}
	w.hookOnStart(ctx, event)

	err := w.execute(ctx, msg)
	event.Duration = w.now().Sub(started)
	if err == nil {
		w.hookOnSuccess(ctx, event)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			w.logWarn(ctx, "ack failed", map[string]any{
				"job_id": msg.JobID,
				"error":  ackErr.Error(),
			})
		}
		return
	}

	event.Err = err
	w.hookOnFailure(ctx, event)
	w.logWarn(ctx, "job execution failed", map[string]any{
		"job_id": msg.JobID,
		"key":    msg.IdempotencyKey,
		"error":  err.Error(),
	})
	nack := core.JobNackOptions{Requeue: true, Reason: err.Error()}
	if permanentJobError(err) {
		nack = core.JobNackOptions{DeadLetter: true, Reason: err.Error()}
	}
	if nackErr := delivery.Nack(ctx, nack); nackErr != nil {
		w.logWarn(ctx, "nack failed", map[string]any{
			"job_id": msg.JobID,
			"error":  nackErr.Error(),
		})
	}
}

func (w *ClaimWorker) execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch strings.TrimSpace(msg.JobID) {
	case JobIDClaimResolve:
		req, err := claimRequestFromMessage(msg)
		if err != nil {
			return err
		}
		_, err = w.service.ResolveClaim(ctx, req)
		if errors.Is(err, core.ErrChecksNotPassing) {
			// Pending or failing checks are not a queue failure: the next
			// qualifying workflow_run event re-triggers resolution.
			w.logWarn(ctx, "claim deferred, checks not passing", map[string]any{
				"job_id": msg.JobID,
				"key":    msg.IdempotencyKey,
			})
			return nil
		}
		return err
	case JobIDEscalationSweep:
		_, err := w.service.Sweep(ctx)
		return err
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

// claimRequestFromMessage rebuilds the claim request from the snapshot the
// webhook handler enqueued.
func claimRequestFromMessage(msg *core.JobExecutionMessage) (core.ClaimRequest, error) {
	params := msg.Parameters
	repository := stringParam(params, "repository")
	if repository == "" {
		return core.ClaimRequest{}, fmt.Errorf("gojob: claim job %q is missing repository", msg.IdempotencyKey)
	}
	number := intParam(params, "pull_number")
	if number <= 0 {
		return core.ClaimRequest{}, fmt.Errorf("gojob: claim job %q is missing pull number", msg.IdempotencyKey)
	}

	deliveryID := stringParam(params, "delivery_id")
	if deliveryID == "" {
		deliveryID = msg.IdempotencyKey
	}
	return core.ClaimRequest{
		DeliveryID: deliveryID,
		Repository: repository,
		PullRequest: core.PullRequest{
			Number:  number,
			Body:    stringParam(params, "body"),
			HeadSHA: stringParam(params, "head_sha"),
			HTMLURL: stringParam(params, "html_url"),
			Author:  stringParam(params, "author"),
			Merged:  boolParam(params, "merged"),
		},
	}, nil
}

// permanentJobError keeps malformed messages out of the retry loop.
func permanentJobError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unknown job id") ||
		strings.Contains(msg, "is missing repository") ||
		strings.Contains(msg, "is missing pull number")
}

func stringParam(params map[string]any, key string) string {
	if value, ok := params[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func intParam(params map[string]any, key string) int {
	switch value := params[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

func boolParam(params map[string]any, key string) bool {
	value, _ := params[key].(bool)
	return value
}

func (w *ClaimWorker) hookOnStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *ClaimWorker) hookOnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *ClaimWorker) hookOnFailure(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *ClaimWorker) logWarn(ctx context.Context, msg string, fields map[string]any) {
	if w.logger == nil {
		return
	}
	logger := w.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	logger.Warn(msg, args...)
}
