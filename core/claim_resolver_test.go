package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

const testSolverAddress = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

func mergedPullRequest(body string) PullRequest {
	return PullRequest{
		Number:  7,
		Body:    body,
		HeadSHA: "abc123",
		HTMLURL: "https://github.com/goliatone/widgets/pull/7",
		Author:  "solver",
		Merged:  true,
	}
}

func TestExtractIssueReferences(t *testing.T) {
	body := "Fixes #42 and closes #43.\nResolves https://github.com/goliatone/widgets/issues/44\n" +
		"Fixes https://github.com/other/repo/issues/99\nfixes #42"
	refs := ExtractIssueReferences(body, "goliatone/widgets")
	want := []int{42, 43, 44}
	if len(refs) != len(want) {
		t.Fatalf("expected %v, got %v", want, refs)
	}
	for i, ref := range refs {
		if ref != want[i] {
			t.Fatalf("expected %v, got %v", want, refs)
		}
	}

	if refs := ExtractIssueReferences("no references here", "goliatone/widgets"); len(refs) != 0 {
		t.Fatalf("expected no references, got %v", refs)
	}
}

func TestExtractPaymentAddress(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"MNEE: " + testSolverAddress, testSolverAddress},
		{"mnee address: " + testSolverAddress, testSolverAddress},
		{"Payment Address: " + testSolverAddress, testSolverAddress},
		{"no address in sight", ""},
		{"MNEE: 0invalidaddress", ""},
	}
	for _, tc := range cases {
		if got := ExtractPaymentAddress(tc.body); got != tc.want {
			t.Fatalf("body %q: expected %q, got %q", tc.body, tc.want, got)
		}
	}
}

func TestChecksPassing(t *testing.T) {
	passing := []CheckRun{
		{Name: "build", Conclusion: CheckConclusionSuccess},
		{Name: "lint", Conclusion: CheckConclusionSkipped},
	}
	if !ChecksPassing(passing) {
		t.Fatalf("expected success and skipped checks to pass")
	}
	if !ChecksPassing(nil) {
		t.Fatalf("expected empty check list to pass")
	}
	failing := append(passing, CheckRun{Name: "test", Conclusion: CheckConclusionFailure})
	if ChecksPassing(failing) {
		t.Fatalf("expected failing check to gate the claim")
	}
}

func TestResolveClaim_Success(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true}
	host := &stubCodeHost{checks: []CheckRun{{Name: "build", Conclusion: CheckConclusionSuccess}}}
	publisher := &stubPublisher{}
	svc := newTestService(t,
		WithBountyStore(store),
		WithPaymentProvider(payment),
		WithCodeHostClient(host),
		WithNotificationPublisher(publisher),
	)
	seeded := seedBounty(t, store, testBounty())

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		DeliveryID:  "delivery-1",
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\n\nMNEE: " + testSolverAddress),
	})
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeClaimed {
		t.Fatalf("expected one claimed result, got %+v", results)
	}

	claimed, err := store.Get(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("get claimed bounty: %v", err)
	}
	if claimed.Status != BountyStatusClaimed {
		t.Fatalf("expected claimed status, got %q", claimed.Status)
	}
	if claimed.SolverAddress != testSolverAddress {
		t.Fatalf("expected solver address recorded, got %q", claimed.SolverAddress)
	}
	if claimed.ClaimedAmount != seeded.CurrentAmount || claimed.PaymentReference == "" || claimed.ClaimedAt == nil {
		t.Fatalf("expected claimed fields set, got %+v", claimed)
	}
	if payment.calls() != 1 {
		t.Fatalf("expected exactly one payment, got %d", payment.calls())
	}
	if len(payment.sentKeys) != 1 || payment.sentKeys[0] != PaymentIdempotencyKey(seeded.ID) {
		t.Fatalf("expected idempotency key %q, got %v", PaymentIdempotencyKey(seeded.ID), payment.sentKeys)
	}
	if len(publisher.succeeded) != 1 {
		t.Fatalf("expected one success notice, got %d", len(publisher.succeeded))
	}
	if len(host.closedIssues) != 1 || host.closedIssues[0] != seeded.IssueID {
		t.Fatalf("expected issue %d closed, got %v", seeded.IssueID, host.closedIssues)
	}
}

func TestResolveClaim_UnmergedAndUnreferencedAreNoOps(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true}
	svc := newTestService(t, WithBountyStore(store), WithPaymentProvider(payment))
	seedBounty(t, store, testBounty())

	pr := mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress)
	pr.Merged = false
	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{Repository: "goliatone/widgets", PullRequest: pr})
	if err != nil || results != nil {
		t.Fatalf("expected unmerged no-op, got %v %v", results, err)
	}

	results, err = svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  "goliatone/widgets",
		PullRequest: mergedPullRequest("refactor only, no issue closed"),
	})
	if err != nil || results != nil {
		t.Fatalf("expected unreferenced no-op, got %v %v", results, err)
	}
	if payment.calls() != 0 {
		t.Fatalf("expected no payments, got %d", payment.calls())
	}
}

func TestResolveClaim_NoActiveBounty(t *testing.T) {
	store := NewMemoryBountyStore()
	svc := newTestService(t, WithBountyStore(store), WithPaymentProvider(&stubPaymentProvider{validAddress: true}))

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  "goliatone/widgets",
		PullRequest: mergedPullRequest("Fixes #42"),
	})
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeNoBounty {
		t.Fatalf("expected no_bounty outcome, got %+v", results)
	}
}

func TestResolveClaim_FailingChecksDefer(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true}
	host := &stubCodeHost{checks: []CheckRun{{Name: "test", Conclusion: CheckConclusionFailure}}}
	svc := newTestService(t,
		WithBountyStore(store),
		WithPaymentProvider(payment),
		WithCodeHostClient(host),
	)
	seeded := seedBounty(t, store, testBounty())

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress),
	})
	if !errors.Is(err, ErrChecksNotPassing) {
		t.Fatalf("expected checks gate error, got: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeChecksPending {
		t.Fatalf("expected checks_pending outcome, got %+v", results)
	}

	after, _ := store.Get(context.Background(), seeded.ID)
	if after.Status != BountyStatusActive {
		t.Fatalf("expected bounty to stay active, got %q", after.Status)
	}
	if payment.calls() != 0 {
		t.Fatalf("expected zero payments, got %d", payment.calls())
	}
}

func TestResolveClaim_MissingAddressRequestsOne(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true}
	publisher := &stubPublisher{}
	svc := newTestService(t,
		WithBountyStore(store),
		WithPaymentProvider(payment),
		WithNotificationPublisher(publisher),
	)
	seeded := seedBounty(t, store, testBounty())

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42, payment details to follow"),
	})
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeAddressMissing {
		t.Fatalf("expected address_missing outcome, got %+v", results)
	}
	if len(publisher.addressReqs) != 1 {
		t.Fatalf("expected one address request notice, got %d", len(publisher.addressReqs))
	}
	if payment.calls() != 0 {
		t.Fatalf("expected zero payments, got %d", payment.calls())
	}
}

func TestResolveClaim_InvalidAddressDefers(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: false}
	publisher := &stubPublisher{}
	svc := newTestService(t,
		WithBountyStore(store),
		WithPaymentProvider(payment),
		WithNotificationPublisher(publisher),
	)
	seeded := seedBounty(t, store, testBounty())

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress),
	})
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeAddressInvalid {
		t.Fatalf("expected address_invalid outcome, got %+v", results)
	}
	if len(publisher.addressBad) != 1 {
		t.Fatalf("expected one address correction notice, got %d", len(publisher.addressBad))
	}
	after, _ := store.Get(context.Background(), seeded.ID)
	if after.Status != BountyStatusActive {
		t.Fatalf("expected bounty to stay active, got %q", after.Status)
	}
}

func TestResolveClaim_PaymentFailureRollsBackReservation(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true, failuresLeft: 99}
	publisher := &stubPublisher{}
	svc := newTestService(t,
		WithBountyStore(store),
		WithPaymentProvider(payment),
		WithNotificationPublisher(publisher),
	)
	seeded := seedBounty(t, store, testBounty())

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress),
	})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected payment failure error, got: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomePaymentFailed {
		t.Fatalf("expected payment_failed outcome, got %+v", results)
	}
	if payment.calls() != DefaultConfig().Retry.MaxAttempts {
		t.Fatalf("expected %d bounded attempts, got %d", DefaultConfig().Retry.MaxAttempts, payment.calls())
	}

	after, _ := store.Get(context.Background(), seeded.ID)
	if after.Status != BountyStatusActive {
		t.Fatalf("expected rollback to active, got %q", after.Status)
	}
	if after.ClaimedAmount != 0 || after.PaymentReference != "" {
		t.Fatalf("expected no claimed fields after rollback, got %+v", after)
	}
	if len(publisher.payFailed) != 1 {
		t.Fatalf("expected one payment failure notice, got %d", len(publisher.payFailed))
	}
}

func TestResolveClaim_TransientPaymentFailureRetriesSameKey(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true, failuresLeft: 1}
	svc := newTestService(t, WithBountyStore(store), WithPaymentProvider(payment))
	seeded := seedBounty(t, store, testBounty())

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress),
	})
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeClaimed {
		t.Fatalf("expected claimed outcome after retry, got %+v", results)
	}
	if payment.calls() != 2 {
		t.Fatalf("expected two attempts, got %d", payment.calls())
	}
	for _, key := range payment.sentKeys {
		if key != PaymentIdempotencyKey(seeded.ID) {
			t.Fatalf("expected stable idempotency key, got %v", payment.sentKeys)
		}
	}
}

func TestResolveClaim_ReservationConflictStopsWithoutPayment(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true}
	svc := newTestService(t, WithBountyStore(store), WithPaymentProvider(payment))
	seeded := seedBounty(t, store, testBounty())

	if _, err := store.CompareAndTransition(context.Background(), seeded.ID, BountyStatusActive,
		NewReservationMutation(testSolverAddress, "https://github.com/goliatone/widgets/pull/6")); err != nil {
		t.Fatalf("pre-reserve bounty: %v", err)
	}

	results, err := svc.ResolveClaim(context.Background(), ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress),
	})
	if err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	// The pre-reserved bounty is no longer visible as active, so the claim
	// sees no bounty rather than a conflict.
	if len(results) != 1 || results[0].Outcome != ClaimOutcomeNoBounty {
		t.Fatalf("expected no_bounty outcome, got %+v", results)
	}
	if payment.calls() != 0 {
		t.Fatalf("expected zero payments, got %d", payment.calls())
	}
}

func TestResolveClaim_ConcurrentClaimsPayOnce(t *testing.T) {
	store := NewMemoryBountyStore()
	payment := &stubPaymentProvider{validAddress: true}
	svc := newTestService(t, WithBountyStore(store), WithPaymentProvider(payment))
	seeded := seedBounty(t, store, testBounty())

	request := ClaimRequest{
		Repository:  seeded.Repository,
		PullRequest: mergedPullRequest("Fixes #42\nMNEE: " + testSolverAddress),
	}

	var wg sync.WaitGroup
	outcomes := make([]ClaimOutcome, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results, _ := svc.ResolveClaim(context.Background(), request)
			if len(results) == 1 {
				outcomes[slot] = results[0].Outcome
			}
		}(i)
	}
	wg.Wait()

	claimedCount := 0
	for _, outcome := range outcomes {
		if outcome == ClaimOutcomeClaimed {
			claimedCount++
		}
	}
	if claimedCount != 1 {
		t.Fatalf("expected exactly one winner, got outcomes %v", outcomes)
	}
	if payment.calls() != 1 {
		t.Fatalf("expected exactly one payment across racers, got %d", payment.calls())
	}

	final, _ := store.Get(context.Background(), seeded.ID)
	if final.Status != BountyStatusClaimed {
		t.Fatalf("expected final status claimed, got %q", final.Status)
	}
}
