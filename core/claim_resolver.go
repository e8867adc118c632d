package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	issueRefPattern = regexp.MustCompile(`(?i)(?:fixes|closes|resolves|fix|close|resolve)\s+#(\d+)`)
	issueURLPattern = regexp.MustCompile(`(?i)(?:fixes|closes|resolves|fix|close|resolve)\s+https://github\.com/([\w.-]+/[\w.-]+)/issues/(\d+)`)
	addressPattern  = regexp.MustCompile(`(?i)(?:mnee address|payment address|mnee)\s*:?\s*([13][a-km-zA-HJ-NP-Z1-9]{25,34})`)
)

// ClaimRequest carries one merged pull request into claim resolution. The
// delivery ID ties the resolution back to the webhook delivery that caused it.
type ClaimRequest struct {
	DeliveryID  string
	Repository  string
	PullRequest PullRequest
}

func (r ClaimRequest) Validate() error {
	if strings.TrimSpace(r.Repository) == "" {
		return fmt.Errorf("core: claim repository is required")
	}
	if r.PullRequest.Number <= 0 {
		return fmt.Errorf("core: claim pull request number is required")
	}
	return nil
}

// ExtractIssueReferences pulls the closing-keyword issue references out of a
// merge body. Bare `#N` references and full GitHub issue URLs pointing at the
// same repository both count; duplicates collapse.
func ExtractIssueReferences(body, repository string) []int {
	seen := map[int]struct{}{}
	for _, match := range issueRefPattern.FindAllStringSubmatch(body, -1) {
		if number, err := strconv.Atoi(match[1]); err == nil && number > 0 {
			seen[number] = struct{}{}
		}
	}
	repository = strings.TrimSpace(repository)
	for _, match := range issueURLPattern.FindAllStringSubmatch(body, -1) {
		if repository != "" && !strings.EqualFold(match[1], repository) {
			continue
		}
		if number, err := strconv.Atoi(match[2]); err == nil && number > 0 {
			seen[number] = struct{}{}
		}
	}
	refs := make([]int, 0, len(seen))
	for number := range seen {
		refs = append(refs, number)
	}
	sort.Ints(refs)
	return refs
}

// ExtractPaymentAddress finds the first declared payment address in a pull
// request body. An empty result means the solver never posted one.
func ExtractPaymentAddress(body string) string {
	match := addressPattern.FindStringSubmatch(body)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// ChecksPassing reports whether every check run concluded success or skipped.
// An empty check list passes: repositories without CI gate on merge alone.
func ChecksPassing(checks []CheckRun) bool {
	for _, check := range checks {
		switch check.Conclusion {
		case CheckConclusionSuccess, CheckConclusionSkipped:
		default:
			return false
		}
	}
	return true
}

// ResolveClaim resolves every bounty referenced by a merged pull request.
// Each referenced issue is settled independently; one failed claim does not
// stop the others. The returned error is the first hard failure, if any.
func (s *Service) ResolveClaim(ctx context.Context, req ClaimRequest) ([]ClaimResult, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	if err := req.Validate(); err != nil {
		return nil, s.mapError(err)
	}
	if !req.PullRequest.Merged {
		s.logInfo(ctx, "claim skipped for unmerged pull request", map[string]any{
			"repository":  req.Repository,
			"pull_number": req.PullRequest.Number,
		})
		return nil, nil
	}

	refs := ExtractIssueReferences(req.PullRequest.Body, req.Repository)
	if len(refs) == 0 {
		s.logInfo(ctx, "merge body references no issues", map[string]any{
			"repository":  req.Repository,
			"pull_number": req.PullRequest.Number,
		})
		return nil, nil
	}

	results := make([]ClaimResult, 0, len(refs))
	var firstErr error
	for _, issueID := range refs {
		result, err := s.resolveIssueClaim(ctx, req, issueID)
		results = append(results, result)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.observeOperation(ctx, startedAt, "claim_resolution", firstErr, map[string]any{
		"repository":  req.Repository,
		"pull_number": req.PullRequest.Number,
		"issue_refs":  len(refs),
	})
	return results, s.mapError(firstErr)
}

func (s *Service) resolveIssueClaim(ctx context.Context, req ClaimRequest, issueID int) (ClaimResult, error) {
	fields := map[string]any{
		"repository":  req.Repository,
		"issue_id":    issueID,
		"pull_number": req.PullRequest.Number,
	}

	bounty, err := s.store.FindActiveByIssue(ctx, req.Repository, issueID)
	if err != nil {
		if errors.Is(err, ErrBountyNotFound) {
			s.logInfo(ctx, "no active bounty for referenced issue", fields)
			return ClaimResult{Outcome: ClaimOutcomeNoBounty}, nil
		}
		return ClaimResult{}, err
	}
	fields["bounty_id"] = bounty.ID

	if s.codeHost != nil && strings.TrimSpace(req.PullRequest.HeadSHA) != "" {
		checks, err := s.codeHost.ListChecksForCommit(ctx, req.Repository, req.PullRequest.HeadSHA)
		if err != nil {
			return ClaimResult{Outcome: ClaimOutcomeChecksPending, Bounty: bounty},
				fmt.Errorf("core: check lookup for %s@%s: %w", req.Repository, req.PullRequest.HeadSHA, err)
		}
		if !ChecksPassing(checks) {
			s.logInfo(ctx, "claim deferred until checks pass", fields)
			return ClaimResult{Outcome: ClaimOutcomeChecksPending, Bounty: bounty},
				fmt.Errorf("core: bounty %d: %w", bounty.ID, ErrChecksNotPassing)
		}
	}

	address := ExtractPaymentAddress(req.PullRequest.Body)
	if address == "" {
		s.logInfo(ctx, "claim deferred, no payment address in merge body", fields)
		s.publishAddressRequest(ctx, bounty, req.PullRequest)
		return ClaimResult{Outcome: ClaimOutcomeAddressMissing, Bounty: bounty}, nil
	}
	if s.paymentProvider != nil {
		valid, err := s.paymentProvider.ValidateAddress(ctx, address)
		if err != nil {
			return ClaimResult{Outcome: ClaimOutcomeAddressInvalid, Bounty: bounty},
				fmt.Errorf("core: address validation: %w", err)
		}
		if !valid {
			s.logInfo(ctx, "claim deferred, payment address rejected", fields)
			s.publishAddressInvalid(ctx, bounty, req.PullRequest)
			return ClaimResult{Outcome: ClaimOutcomeAddressInvalid, Bounty: bounty}, nil
		}
	}

	reserved, err := s.store.CompareAndTransition(ctx, bounty.ID, BountyStatusActive,
		NewReservationMutation(address, req.PullRequest.HTMLURL))
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			s.logInfo(ctx, "claim lost the reservation race", fields)
			return ClaimResult{Outcome: ClaimOutcomeConflict, Bounty: bounty}, nil
		}
		return ClaimResult{}, err
	}

	receipt, payErr := s.payReservedBounty(ctx, reserved, address)
	if payErr != nil {
		released, rollbackErr := s.store.CompareAndTransition(ctx, reserved.ID, BountyStatusClaiming,
			NewReleaseMutation(reserved))
		if rollbackErr != nil {
			fields["rollback_error"] = rollbackErr.Error()
			s.logError(ctx, "reservation rollback failed after payment failure", fields)
		} else {
			reserved = released
		}
		fields["payment_error"] = payErr.Error()
		s.logError(ctx, "bounty payment failed, reservation released", fields)
		s.publishPaymentFailed(ctx, reserved, req.PullRequest, payErr)
		return ClaimResult{Outcome: ClaimOutcomePaymentFailed, Bounty: reserved},
			fmt.Errorf("core: bounty %d: %w: %v", reserved.ID, ErrPaymentFailed, payErr)
	}

	claimed, err := s.store.CompareAndTransition(ctx, reserved.ID, BountyStatusClaiming,
		NewClaimMutation(reserved, receipt.TransactionID, s.now()))
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// Payment went out but the reservation is gone. This needs an
			// operator: money moved without a matching claimed record.
			fields["payment_reference"] = receipt.TransactionID
			s.logError(ctx, "payment issued but claim finalization lost its reservation", fields)
			s.recordCounter(ctx, "bounty.claim_anomaly.total", 1, map[string]string{
				"repository": req.Repository,
			})
		}
		return ClaimResult{Outcome: ClaimOutcomeConflict, Bounty: reserved, Receipt: receipt}, err
	}

	s.publishClaimSucceeded(ctx, claimed, req.PullRequest, receipt)
	s.closeIssue(ctx, claimed)
	s.logInfo(ctx, "bounty claimed", map[string]any{
		"repository":        claimed.Repository,
		"issue_id":          claimed.IssueID,
		"bounty_id":         claimed.ID,
		"claimed_amount":    claimed.ClaimedAmount,
		"payment_reference": claimed.PaymentReference,
	})
	return ClaimResult{Outcome: ClaimOutcomeClaimed, Bounty: claimed, Receipt: receipt}, nil
}

// payReservedBounty sends the payment with bounded retries. The idempotency
// key is derived from the bounty ID alone so a retried send can never pay
// twice.
func (s *Service) payReservedBounty(ctx context.Context, reserved Bounty, address string) (PaymentReceipt, error) {
	if s.paymentProvider == nil {
		return PaymentReceipt{}, fmt.Errorf("core: payment provider is not configured")
	}
	idempotencyKey := PaymentIdempotencyKey(reserved.ID)

	var receipt PaymentReceipt
	_, err := s.runWithRetry(ctx, s.config.Retry.MaxAttempts, func(attempt int) error {
		sent, sendErr := s.paymentProvider.SendPayment(ctx, address, reserved.CurrentAmount, idempotencyKey)
		if sendErr != nil {
			s.logWarn(ctx, "payment attempt failed", map[string]any{
				"bounty_id": reserved.ID,
				"attempt":   attempt,
				"error":     sendErr.Error(),
			})
			return sendErr
		}
		receipt = sent
		return nil
	})
	if err != nil {
		return PaymentReceipt{}, err
	}
	return receipt, nil
}

// PaymentIdempotencyKey is the dedupe token handed to the payment provider.
func PaymentIdempotencyKey(bountyID int64) string {
	return fmt.Sprintf("bounty-%d", bountyID)
}

func (s *Service) publishClaimSucceeded(ctx context.Context, bounty Bounty, pr PullRequest, receipt PaymentReceipt) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishClaimSucceeded(ctx, ClaimNotice{Bounty: bounty, PullRequest: pr, Receipt: receipt}); err != nil {
		s.logWarn(ctx, "claim success notification failed", map[string]any{
			"bounty_id": bounty.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) publishAddressRequest(ctx context.Context, bounty Bounty, pr PullRequest) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAddressRequest(ctx, ClaimNotice{Bounty: bounty, PullRequest: pr}); err != nil {
		s.logWarn(ctx, "address request notification failed", map[string]any{
			"bounty_id": bounty.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) publishAddressInvalid(ctx context.Context, bounty Bounty, pr PullRequest) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAddressInvalid(ctx, ClaimNotice{Bounty: bounty, PullRequest: pr}); err != nil {
		s.logWarn(ctx, "address correction notification failed", map[string]any{
			"bounty_id": bounty.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) publishPaymentFailed(ctx context.Context, bounty Bounty, pr PullRequest, cause error) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPaymentFailed(ctx, ClaimNotice{Bounty: bounty, PullRequest: pr, Cause: cause}); err != nil {
		s.logWarn(ctx, "payment failure notification failed", map[string]any{
			"bounty_id": bounty.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) closeIssue(ctx context.Context, bounty Bounty) {
	if s.codeHost == nil {
		return
	}
	if err := s.codeHost.CloseIssue(ctx, bounty.Repository, bounty.IssueID); err != nil {
		s.logWarn(ctx, "issue close failed after claim", map[string]any{
			"bounty_id": bounty.ID,
			"issue_id":  bounty.IssueID,
			"error":     err.Error(),
		})
	}
}
