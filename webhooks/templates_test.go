package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/goliatone/go-bounty/core"
)

func githubSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHeaderHMACVerifier_AcceptsValidSignature(t *testing.T) {
	body := []byte(`{"action":"closed"}`)
	template := NewGitHubWebhookTemplate("topsecret")

	err := template.Verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{
			"X-Hub-Signature-256": githubSignature("topsecret", body),
		},
		Body: body,
	})
	if err != nil {
		t.Fatalf("expected valid signature to verify: %v", err)
	}
}

func TestHeaderHMACVerifier_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"action":"closed"}`)
	template := NewGitHubWebhookTemplate("topsecret")

	err := template.Verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{
			"X-Hub-Signature-256": githubSignature("topsecret", body),
		},
		Body: []byte(`{"action":"closed","merged":true}`),
	})
	if !errors.Is(err, core.ErrSignatureInvalid) {
		t.Fatalf("expected signature failure, got: %v", err)
	}
}

func TestHeaderHMACVerifier_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"action":"closed"}`)
	template := NewGitHubWebhookTemplate("topsecret")

	err := template.Verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{
			"X-Hub-Signature-256": githubSignature("other-secret", body),
		},
		Body: body,
	})
	if !errors.Is(err, core.ErrSignatureInvalid) {
		t.Fatalf("expected signature failure, got: %v", err)
	}
}

func TestHeaderHMACVerifier_RequiresHeader(t *testing.T) {
	template := NewGitHubWebhookTemplate("topsecret")

	err := template.Verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{},
		Body:    []byte("{}"),
	})
	if !errors.Is(err, core.ErrSignatureInvalid) {
		t.Fatalf("expected missing header rejection, got: %v", err)
	}
}

func TestHeaderHMACVerifier_RejectsMalformedHex(t *testing.T) {
	template := NewGitHubWebhookTemplate("topsecret")

	err := template.Verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{
			"X-Hub-Signature-256": "sha256=not-hex-at-all",
		},
		Body: []byte("{}"),
	})
	if !errors.Is(err, core.ErrSignatureInvalid) {
		t.Fatalf("expected malformed signature rejection, got: %v", err)
	}
}

func TestHeaderDeliveryIDExtractor(t *testing.T) {
	template := NewGitHubWebhookTemplate("topsecret")

	deliveryID, err := template.Extractor(core.InboundRequest{
		Headers: map[string]string{"X-GitHub-Delivery": "  guid-123 "},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if deliveryID != "guid-123" {
		t.Fatalf("expected trimmed delivery id, got %q", deliveryID)
	}

	if _, err := template.Extractor(core.InboundRequest{Headers: map[string]string{}}); err == nil {
		t.Fatalf("expected missing delivery id to fail")
	}
}

func TestChainDeliveryIDExtractors(t *testing.T) {
	chain := ChainDeliveryIDExtractors(
		HeaderDeliveryIDExtractor("X-Missing"),
		HeaderDeliveryIDExtractor("X-GitHub-Delivery"),
	)
	deliveryID, err := chain(core.InboundRequest{
		Headers: map[string]string{"X-GitHub-Delivery": "guid-9"},
	})
	if err != nil || deliveryID != "guid-9" {
		t.Fatalf("expected fallback extractor to win, got %q err=%v", deliveryID, err)
	}
}
