package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-bounty/core"
)

type SourceWebhookTemplate struct {
	Surface   string
	Verifier  Verifier
	Extractor DeliveryIDExtractor
}

type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required: %w", strings.TrimSpace(v.Header), core.ErrSignatureInvalid)
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required: %w", core.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", core.ErrSignatureInvalid)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed: %w", core.ErrSignatureInvalid)
		}
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", core.ErrSignatureInvalid)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed: %w", core.ErrSignatureInvalid)
		}
	}
	return nil
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req core.InboundRequest) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(req.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(req core.InboundRequest) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(req)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

// NewGitHubWebhookTemplate wires the GitHub delivery conventions: hex
// HMAC-SHA256 in X-Hub-Signature-256 with the sha256= prefix, and the
// delivery GUID in X-GitHub-Delivery.
func NewGitHubWebhookTemplate(secret string) SourceWebhookTemplate {
	return SourceWebhookTemplate{
		Surface: "github",
		Verifier: HeaderHMACVerifier{
			Header:   "X-Hub-Signature-256",
			Prefix:   "sha256=",
			Secret:   strings.TrimSpace(secret),
			Encoding: "hex",
		},
		Extractor: HeaderDeliveryIDExtractor("X-GitHub-Delivery", "X-Request-Id"),
	}
}
