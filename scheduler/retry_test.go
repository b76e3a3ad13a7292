package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/domain"
)

func TestRetryPolicyForRetryableClassHasNoNonRetryableTypes(t *testing.T) {
	rp := RetryPolicyFor(domain.FailureNetworkError)
	require.NotNil(t, rp)
	assert.Equal(t, time.Minute, rp.InitialInterval)
	assert.Equal(t, 2.0, rp.BackoffCoefficient)
	assert.Equal(t, 16*time.Minute, rp.MaximumInterval)
	assert.Equal(t, int32(5), rp.MaximumAttempts)
	assert.Empty(t, rp.NonRetryableErrorTypes)
}

func TestRetryPolicyForNonRetryableClassSetsNonRetryableType(t *testing.T) {
	rp := RetryPolicyFor(domain.FailureInvalidNumber)
	require.NotNil(t, rp)
	assert.Equal(t, int32(1), rp.MaximumAttempts)
	assert.Equal(t, []string{nonRetryableErrorType}, rp.NonRetryableErrorTypes)
}

func TestRetryPolicyForUnknownClassDefaultsToNonRetryable(t *testing.T) {
	rp := RetryPolicyFor(domain.FailureClass("made_up"))
	require.NotNil(t, rp)
	assert.Equal(t, int32(1), rp.MaximumAttempts)
	assert.Equal(t, []string{nonRetryableErrorType}, rp.NonRetryableErrorTypes)
}

func TestRetryableReflectsBackoffTable(t *testing.T) {
	assert.True(t, Retryable(domain.FailureNoAnswer))
	assert.True(t, Retryable(domain.FailureBusy))
	assert.True(t, Retryable(domain.FailureVoicemail))
	assert.True(t, Retryable(domain.FailureNetworkError))
	assert.True(t, Retryable(domain.FailureProviderRateLimited))
	assert.False(t, Retryable(domain.FailureInvalidNumber))
	assert.False(t, Retryable(domain.FailureUpstreamFatal))
	assert.False(t, Retryable(domain.FailureAgentUnavailable))
	assert.False(t, Retryable(domain.FailureUnknown))
	assert.False(t, Retryable(domain.FailureClass("made_up")))
}

func TestDefaultPlacementRetryPolicyUsesNetworkErrorCadenceAndIsNonRetryableTagged(t *testing.T) {
	rp := DefaultPlacementRetryPolicy()
	require.NotNil(t, rp)
	assert.Equal(t, time.Minute, rp.InitialInterval)
	assert.Equal(t, 16*time.Minute, rp.MaximumInterval)
	assert.Equal(t, int32(5), rp.MaximumAttempts)
	assert.Equal(t, []string{nonRetryableErrorType}, rp.NonRetryableErrorTypes)
}
