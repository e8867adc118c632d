package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-bounty/core"
)

// ClaimService is the slice of the core service the webhook handler drives.
type ClaimService interface {
	ResolveClaim(ctx context.Context, req core.ClaimRequest) ([]core.ClaimResult, error)
	NoteIssueClosed(ctx context.Context, repository string, issueID int) error
}

// BountyEventHandler turns classified deliveries into claim work. With an
// enqueuer configured the handler hands resolution to the job queue and
// acknowledges immediately; without one it resolves inline.
type BountyEventHandler struct {
	Service  ClaimService
	CodeHost core.CodeHostClient
	Enqueuer core.JobEnqueuer
	JobID    string
	Logger   core.Logger
}

const DefaultClaimJobID = "bounty.claim.resolve"

func (h *BountyEventHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.Service == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: event handler requires a claim service")
	}

	eventName := headerValue(req.Headers, "X-GitHub-Event")
	event, err := ClassifyEvent(eventName, req.Body)
	if err != nil {
		return core.InboundResult{}, err
	}
	deliveryID := headerValue(req.Headers, "X-GitHub-Delivery")

	switch event.Kind {
	case EventPullRequestMerged:
		return h.handleMergedPull(ctx, deliveryID, event.Repository, event.PullRequest)

	case EventWorkflowSucceeded:
		return h.handleWorkflowSucceeded(ctx, deliveryID, event)

	case EventIssueClosed:
		if err := h.Service.NoteIssueClosed(ctx, event.Repository, event.IssueNumber); err != nil {
			return core.InboundResult{}, err
		}
		return accepted(map[string]any{"event": string(event.Kind), "issue": event.IssueNumber}), nil
	}

	return accepted(map[string]any{"event": string(EventIgnored), "github_event": eventName}), nil
}

func (h *BountyEventHandler) handleMergedPull(ctx context.Context, deliveryID, repository string, pr core.PullRequest) (core.InboundResult, error) {
	if h.Enqueuer != nil {
		msg := claimJobMessage(h.jobID(), deliveryID, repository, pr)
		if err := h.Enqueuer.Enqueue(ctx, msg); err != nil {
			return core.InboundResult{}, fmt.Errorf("webhooks: enqueue claim resolution: %w", err)
		}
		return accepted(map[string]any{
			"event":       string(EventPullRequestMerged),
			"enqueued":    true,
			"pull_number": pr.Number,
		}), nil
	}

	results, err := h.Service.ResolveClaim(ctx, core.ClaimRequest{
		DeliveryID:  deliveryID,
		Repository:  repository,
		PullRequest: pr,
	})
	if err != nil && !errors.Is(err, core.ErrChecksNotPassing) {
		return core.InboundResult{}, err
	}
	return accepted(map[string]any{
		"event":       string(EventPullRequestMerged),
		"pull_number": pr.Number,
		"claims":      len(results),
	}), nil
}

func (h *BountyEventHandler) handleWorkflowSucceeded(ctx context.Context, deliveryID string, event Event) (core.InboundResult, error) {
	if h.CodeHost == nil || len(event.PullNumbers) == 0 {
		return accepted(map[string]any{"event": string(EventWorkflowSucceeded), "pulls": 0}), nil
	}

	handled := 0
	for _, number := range event.PullNumbers {
		pr, err := h.CodeHost.GetPullRequest(ctx, event.Repository, number)
		if err != nil {
			return core.InboundResult{}, fmt.Errorf("webhooks: fetch pull request %d: %w", number, err)
		}
		if !pr.Merged {
			continue
		}
		result, err := h.handleMergedPull(ctx, deliveryID, event.Repository, pr)
		if err != nil {
			return result, err
		}
		handled++
	}
	return accepted(map[string]any{"event": string(EventWorkflowSucceeded), "pulls": handled}), nil
}

func (h *BountyEventHandler) jobID() string {
	if h != nil && strings.TrimSpace(h.JobID) != "" {
		return h.JobID
	}
	return DefaultClaimJobID
}

func claimJobMessage(jobID, deliveryID, repository string, pr core.PullRequest) *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID: jobID,
		Parameters: map[string]any{
			"delivery_id": deliveryID,
			"repository":  repository,
			"pull_number": pr.Number,
			"body":        pr.Body,
			"head_sha":    pr.HeadSHA,
			"html_url":    pr.HTMLURL,
			"author":      pr.Author,
			"merged":      pr.Merged,
		},
		IdempotencyKey: deliveryID,
		DedupPolicy:    "ignore",
	}
}

func accepted(metadata map[string]any) core.InboundResult {
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   metadata,
	}
}
