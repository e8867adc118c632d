package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bounty/core"
)

// Comment bodies posted back to the code host. Amounts are MNEE token
// amounts rendered as plain integers, matching what solvers see in their
// wallets.

func congratulationsComment(notice core.ClaimNotice) string {
	return fmt.Sprintf(`🎉 **Congratulations!** Your PR fixes issue #%d which has a bounty of **%d MNEE**!

To claim your bounty, please add your MNEE address to your PR description in the following format:
`+"```"+`
MNEE: 1YourMneeAddressHere
`+"```"+`

Once you've added your MNEE address, the bounty will be automatically released to you.

**Note:** MNEE uses Bitcoin-style addresses. If you need help setting up an MNEE wallet, visit [docs.mnee.io](https://docs.mnee.io).`,
		notice.Bounty.IssueID, notice.Bounty.CurrentAmount)
}

func invalidAddressComment(core.ClaimNotice) string {
	return "⚠️ **Invalid MNEE Address**\n\n" +
		"The MNEE address you provided appears to be invalid. Please check and update it in your PR description.\n\n" +
		"MNEE addresses should look like: `1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa`\n\n" +
		"For help with MNEE wallets, visit [docs.mnee.io](https://docs.mnee.io)."
}

func paymentFailedComment(notice core.ClaimNotice) string {
	cause := "unknown error"
	if notice.Cause != nil {
		cause = notice.Cause.Error()
	}
	return fmt.Sprintf(`❌ **Payment Failed**

There was an error sending your MNEE payment. Our team has been notified and will resolve this issue.

Error: %s

Please contact support if this persists.`, cause)
}

func claimSucceededComment(notice core.ClaimNotice) string {
	return fmt.Sprintf(`✅ **Bounty Claimed!**

The bounty of **%d MNEE** has been successfully transferred to %s.

MNEE Transaction ID: `+"`%s`"+`
Pull Request: #%d

Thank you for your contribution! 🚀

The payment should appear in your MNEE wallet shortly.`,
		notice.Bounty.ClaimedAmount, notice.Bounty.SolverAddress,
		notice.Receipt.TransactionID, notice.PullRequest.Number)
}

func escalatedComment(notice core.EscalationNotice, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚀 **Bounty Escalated!**\n\n")
	fmt.Fprintf(&sb, "The bounty for this issue has increased from **%d MNEE** to **%d MNEE** (+%d%%).\n\n",
		notice.Quote.OldAmount, notice.Quote.NewAmount,
		percentageIncrease(notice.Quote.OldAmount, notice.Quote.NewAmount))

	hoursElapsed := int(now.Sub(notice.Bounty.CreatedAt).Hours())
	fmt.Fprintf(&sb, "This issue has been open for %d hours. %s\n\n",
		hoursElapsed, nextEscalationMessage(notice.Bounty, hoursElapsed))

	fmt.Fprintf(&sb, "**Current bounty:** %d MNEE\n", notice.Quote.NewAmount)
	fmt.Fprintf(&sb, "**Maximum possible bounty:** %d MNEE\n\n", notice.Bounty.MaxAmount)
	fmt.Fprintf(&sb, "---\n*Escalation %d*", notice.Bounty.EscalationCount)
	return sb.String()
}

func percentageIncrease(oldAmount, newAmount int64) int64 {
	if oldAmount <= 0 {
		return 0
	}
	increase := float64(newAmount-oldAmount) / float64(oldAmount) * 100
	return int64(increase + 0.5)
}

func nextEscalationMessage(bounty core.Bounty, hoursElapsed int) string {
	if bounty.CurrentAmount >= bounty.MaxAmount {
		return "This bounty has reached its maximum value."
	}
	for _, threshold := range []int{24, 72, 168} {
		if hoursElapsed >= threshold {
			continue
		}
		hoursUntilNext := threshold - hoursElapsed
		days := hoursUntilNext / 24
		hours := hoursUntilNext % 24
		if days > 0 {
			return fmt.Sprintf("The bounty will increase again in %d %s and %d %s.",
				days, plural(days, "day"), hours, plural(hours, "hour"))
		}
		return fmt.Sprintf("The bounty will increase again in %d %s.", hours, plural(hours, "hour"))
	}
	return "This bounty is past its final scheduled increase."
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
