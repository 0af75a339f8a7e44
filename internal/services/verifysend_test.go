package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripook/tripook-backend/internal/models"
)

func TestEvaluateResendFirstSend(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	count, err := evaluateResend(&models.Account{}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEvaluateResendAlreadyVerified(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := evaluateResend(&models.Account{EmailVerified: true}, now)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestEvaluateResendWindowLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Minute)

	_, err := evaluateResend(&models.Account{
		VerificationSentCount: 3,
		LastVerificationSent:  &last,
	}, now)

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	// 30 minutes of the rolling hour remain.
	assert.Equal(t, 30*time.Minute, rateErr.RetryAfter)
}

func TestEvaluateResendWindowReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-61 * time.Minute)

	count, err := evaluateResend(&models.Account{
		VerificationSentCount: 3,
		LastVerificationSent:  &last,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "counter resets after the window elapses")
}

func TestEvaluateResendCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Second)

	_, err := evaluateResend(&models.Account{
		VerificationSentCount: 1,
		LastVerificationSent:  &last,
	}, now)

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 50*time.Second, rateErr.RetryAfter)
}

func TestEvaluateResendAfterCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Minute)

	count, err := evaluateResend(&models.Account{
		VerificationSentCount: 2,
		LastVerificationSent:  &last,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
