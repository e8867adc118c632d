package webhooks

import (
	"errors"
	"testing"

	"github.com/goliatone/go-bounty/core"
)

func TestClassifyEvent_MergedPullRequest(t *testing.T) {
	body := []byte(`{
		"action": "closed",
		"pull_request": {
			"number": 7,
			"body": "Fixes #42\nMNEE: 1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
			"merged": true,
			"html_url": "https://github.com/goliatone/widgets/pull/7",
			"user": {"login": "solver"},
			"head": {"sha": "abc123"}
		},
		"repository": {"full_name": "goliatone/widgets"}
	}`)

	event, err := ClassifyEvent("pull_request", body)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if event.Kind != EventPullRequestMerged {
		t.Fatalf("expected merged pull event, got %q", event.Kind)
	}
	if event.Repository != "goliatone/widgets" {
		t.Fatalf("expected repository, got %q", event.Repository)
	}
	pr := event.PullRequest
	if pr.Number != 7 || !pr.Merged || pr.HeadSHA != "abc123" || pr.Author != "solver" {
		t.Fatalf("unexpected pull request payload: %+v", pr)
	}
}

func TestClassifyEvent_ClosedWithoutMergeIgnored(t *testing.T) {
	body := []byte(`{
		"action": "closed",
		"pull_request": {"number": 7, "merged": false},
		"repository": {"full_name": "goliatone/widgets"}
	}`)

	event, err := ClassifyEvent("pull_request", body)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if event.Kind != EventIgnored {
		t.Fatalf("expected ignored event, got %q", event.Kind)
	}
}

func TestClassifyEvent_WorkflowRunSuccess(t *testing.T) {
	body := []byte(`{
		"action": "completed",
		"workflow_run": {
			"conclusion": "success",
			"head_sha": "abc123",
			"pull_requests": [{"number": 7}, {"number": 9}]
		},
		"repository": {"full_name": "goliatone/widgets"}
	}`)

	event, err := ClassifyEvent("workflow_run", body)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if event.Kind != EventWorkflowSucceeded {
		t.Fatalf("expected workflow event, got %q", event.Kind)
	}
	if len(event.PullNumbers) != 2 || event.PullNumbers[0] != 7 || event.PullNumbers[1] != 9 {
		t.Fatalf("expected pull numbers [7 9], got %v", event.PullNumbers)
	}
}

func TestClassifyEvent_WorkflowRunFailureIgnored(t *testing.T) {
	body := []byte(`{
		"action": "completed",
		"workflow_run": {"conclusion": "failure"},
		"repository": {"full_name": "goliatone/widgets"}
	}`)

	event, err := ClassifyEvent("workflow_run", body)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if event.Kind != EventIgnored {
		t.Fatalf("expected ignored event, got %q", event.Kind)
	}
}

func TestClassifyEvent_IssueClosed(t *testing.T) {
	body := []byte(`{
		"action": "closed",
		"issue": {"number": 42},
		"repository": {"full_name": "goliatone/widgets"}
	}`)

	event, err := ClassifyEvent("issues", body)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if event.Kind != EventIssueClosed || event.IssueNumber != 42 {
		t.Fatalf("expected issue closed event, got %+v", event)
	}
}

func TestClassifyEvent_UnknownEventIgnored(t *testing.T) {
	event, err := ClassifyEvent("star", []byte(`{"action":"created"}`))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if event.Kind != EventIgnored {
		t.Fatalf("expected ignored event, got %q", event.Kind)
	}
}

func TestClassifyEvent_MalformedPayload(t *testing.T) {
	if _, err := ClassifyEvent("pull_request", []byte(`{not json`)); !errors.Is(err, core.ErrMalformedEvent) {
		t.Fatalf("expected malformed event error, got: %v", err)
	}
	if _, err := ClassifyEvent("issues", []byte(`{"action":"closed"}`)); !errors.Is(err, core.ErrMalformedEvent) {
		t.Fatalf("expected malformed event error for missing fields, got: %v", err)
	}
}
