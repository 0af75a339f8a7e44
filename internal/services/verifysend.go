package services

import (
	"time"

	"github.com/tripook/tripook-backend/internal/models"
)

const (
	// verificationResendLimit emails per rolling window, plus a fixed cooldown
	// between consecutive sends. Both checks must pass independently.
	verificationResendLimit    = 3
	verificationResendWindow   = time.Hour
	verificationResendCooldown = 60 * time.Second
)

// evaluateResend decides whether another verification email may be issued for
// the account right now. It returns the effective sent count to build the next
// counter value from (0 when the rolling window has elapsed and the counter
// resets). The caller persists count+1 and lastSent=now with a conditional
// update keyed on the counters observed here.
func evaluateResend(acct *models.Account, now time.Time) (int, error) {
	if acct.EmailVerified {
		return 0, ErrAlreadyVerified
	}

	count := acct.VerificationSentCount
	last := acct.LastVerificationSent

	if last != nil && now.Sub(*last) >= verificationResendWindow {
		// Rolling-window reset after an hour of inactivity.
		count = 0
	}

	if last != nil {
		elapsed := now.Sub(*last)
		if count >= verificationResendLimit && elapsed < verificationResendWindow {
			return 0, newWindowLimitError(verificationResendWindow - elapsed)
		}
		if elapsed < verificationResendCooldown {
			return 0, newCooldownError(verificationResendCooldown - elapsed)
		}
	}

	return count, nil
}
