package webhooks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-bounty/core"
)

type EventKind string

const (
	EventPullRequestMerged EventKind = "pull_request_merged"
	EventWorkflowSucceeded EventKind = "workflow_succeeded"
	EventIssueClosed       EventKind = "issue_closed"
	EventIgnored           EventKind = "ignored"
)

// Event is the classified form of one webhook delivery. Only the fields for
// the matching kind are populated.
type Event struct {
	Kind        EventKind
	Repository  string
	PullRequest core.PullRequest
	PullNumbers []int
	HeadSHA     string
	IssueNumber int
}

type repositoryEnvelope struct {
	FullName string `json:"full_name"`
}

type pullRequestPayload struct {
	Number  int    `json:"number"`
	Body    string `json:"body"`
	Merged  bool   `json:"merged"`
	HTMLURL string `json:"html_url"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

type pullRequestEvent struct {
	Action      string             `json:"action"`
	PullRequest pullRequestPayload `json:"pull_request"`
	Repository  repositoryEnvelope `json:"repository"`
}

type workflowRunEvent struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		Conclusion   string `json:"conclusion"`
		HeadSHA      string `json:"head_sha"`
		PullRequests []struct {
			Number int `json:"number"`
		} `json:"pull_requests"`
	} `json:"workflow_run"`
	Repository repositoryEnvelope `json:"repository"`
}

type issuesEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number int `json:"number"`
	} `json:"issue"`
	Repository repositoryEnvelope `json:"repository"`
}

// ClassifyEvent maps a GitHub event name and payload to the claim flow's
// interest set. Events outside it classify as ignored, not as errors.
func ClassifyEvent(eventName string, body []byte) (Event, error) {
	switch strings.TrimSpace(strings.ToLower(eventName)) {
	case "pull_request":
		var payload pullRequestEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Event{}, fmt.Errorf("webhooks: decode pull_request event: %w", core.ErrMalformedEvent)
		}
		if payload.Action != "closed" || !payload.PullRequest.Merged {
			return Event{Kind: EventIgnored, Repository: payload.Repository.FullName}, nil
		}
		if payload.Repository.FullName == "" || payload.PullRequest.Number <= 0 {
			return Event{}, fmt.Errorf("webhooks: pull_request event missing repository or number: %w", core.ErrMalformedEvent)
		}
		return Event{
			Kind:       EventPullRequestMerged,
			Repository: payload.Repository.FullName,
			PullRequest: core.PullRequest{
				Number:  payload.PullRequest.Number,
				Body:    payload.PullRequest.Body,
				HeadSHA: payload.PullRequest.Head.SHA,
				HTMLURL: payload.PullRequest.HTMLURL,
				Author:  payload.PullRequest.User.Login,
				Merged:  true,
			},
		}, nil

	case "workflow_run":
		var payload workflowRunEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Event{}, fmt.Errorf("webhooks: decode workflow_run event: %w", core.ErrMalformedEvent)
		}
		if payload.Action != "completed" || payload.WorkflowRun.Conclusion != "success" {
			return Event{Kind: EventIgnored, Repository: payload.Repository.FullName}, nil
		}
		if payload.Repository.FullName == "" {
			return Event{}, fmt.Errorf("webhooks: workflow_run event missing repository: %w", core.ErrMalformedEvent)
		}
		numbers := make([]int, 0, len(payload.WorkflowRun.PullRequests))
		for _, pr := range payload.WorkflowRun.PullRequests {
			if pr.Number > 0 {
				numbers = append(numbers, pr.Number)
			}
		}
		return Event{
			Kind:        EventWorkflowSucceeded,
			Repository:  payload.Repository.FullName,
			PullNumbers: numbers,
			HeadSHA:     payload.WorkflowRun.HeadSHA,
		}, nil

	case "issues":
		var payload issuesEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Event{}, fmt.Errorf("webhooks: decode issues event: %w", core.ErrMalformedEvent)
		}
		if payload.Action != "closed" {
			return Event{Kind: EventIgnored, Repository: payload.Repository.FullName}, nil
		}
		if payload.Repository.FullName == "" || payload.Issue.Number <= 0 {
			return Event{}, fmt.Errorf("webhooks: issues event missing repository or number: %w", core.ErrMalformedEvent)
		}
		return Event{
			Kind:        EventIssueClosed,
			Repository:  payload.Repository.FullName,
			IssueNumber: payload.Issue.Number,
		}, nil
	}

	return Event{Kind: EventIgnored}, nil
}
