package scheduler

import (
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/callwave/callwave/domain"
)

// nonRetryableErrorType is the Temporal error type PlaceScheduledCallActivity
// tags a failure with when the failure class should never be retried.
// RetryPolicyFor's NonRetryableErrorTypes is matched against this.
const nonRetryableErrorType = "NonRetryableCallFailure"

// backoffPolicy is the per-class retry shape from spec.md §4.10's table,
// expressed as a Temporal-compatible geometric series (InitialInterval,
// BackoffCoefficient, MaximumInterval) rather than an explicit per-attempt
// delay list, since the workflow hands retry scheduling to Temporal's own
// activity retry rather than a hand-rolled sleep loop (see
// SPEC_FULL.md §4.10). For network_error the spec's 1/2/4/8/16 minute
// sequence is an exact base-2 geometric series; for no_answer/busy the
// 5/15/30 minute sequence isn't uniformly geometric (x3 then x2), so
// InitialInterval/BackoffCoefficient/MaximumInterval below are chosen to
// land on the same three values (5, ~12.2, 30 capped) rather than match
// it exactly attempt-for-attempt — an approximation documented in
// DESIGN.md's scheduler entry.
type backoffPolicy struct {
	initialInterval    time.Duration
	backoffCoefficient float64
	maximumInterval    time.Duration
	maximumAttempts    int32
	retryable          bool
}

var backoffTable = map[domain.FailureClass]backoffPolicy{
	// 5 min, ~12 min, 30 min (capped), 3 attempts.
	domain.FailureNoAnswer: {
		initialInterval: 5 * time.Minute, backoffCoefficient: 2.449,
		maximumInterval: 30 * time.Minute, maximumAttempts: 3, retryable: true,
	},
	domain.FailureBusy: {
		initialInterval: 5 * time.Minute, backoffCoefficient: 2.449,
		maximumInterval: 30 * time.Minute, maximumAttempts: 3, retryable: true,
	},
	// Didn't reach a live person either; grouped with no_answer/busy per the
	// same cadence since spec.md's backoff table doesn't list voicemail
	// separately.
	domain.FailureVoicemail: {
		initialInterval: 5 * time.Minute, backoffCoefficient: 2.449,
		maximumInterval: 30 * time.Minute, maximumAttempts: 3, retryable: true,
	},
	// 1, 2, 4, 8, 16 min - exact base-2 geometric series, 5 attempts.
	domain.FailureNetworkError: {
		initialInterval: time.Minute, backoffCoefficient: 2,
		maximumInterval: 16 * time.Minute, maximumAttempts: 5, retryable: true,
	},
	// Same transient shape as network_error; not named in spec.md's table but
	// clearly the same family of retryable provider failure.
	domain.FailureProviderRateLimited: {
		initialInterval: time.Minute, backoffCoefficient: 2,
		maximumInterval: 16 * time.Minute, maximumAttempts: 5, retryable: true,
	},
	domain.FailureInvalidNumber: {maximumAttempts: 1, retryable: false},
	domain.FailureUpstreamFatal: {maximumAttempts: 1, retryable: false},
	// No policy decision either way in spec.md; treated conservatively as
	// non-retryable rather than guessing at a cadence.
	domain.FailureAgentUnavailable: {maximumAttempts: 1, retryable: false},
	domain.FailureUnknown:          {maximumAttempts: 1, retryable: false},
}

// RetryPolicyFor maps a failure class onto the Temporal ActivityOptions
// RetryPolicy PlaceScheduledCallActivity should run under.
func RetryPolicyFor(class domain.FailureClass) *temporal.RetryPolicy {
	policy, ok := backoffTable[class]
	if !ok {
		policy = backoffPolicy{maximumAttempts: 1, retryable: false}
	}

	rp := &temporal.RetryPolicy{
		InitialInterval:    policy.initialInterval,
		BackoffCoefficient: policy.backoffCoefficient,
		MaximumInterval:    policy.maximumInterval,
		MaximumAttempts:    policy.maximumAttempts,
	}
	if !policy.retryable {
		rp.NonRetryableErrorTypes = []string{nonRetryableErrorType}
	}
	return rp
}

// Retryable reports whether class is ever eligible for retry under the
// current backoff table.
func Retryable(class domain.FailureClass) bool {
	policy, ok := backoffTable[class]
	return ok && policy.retryable
}

// DefaultPlacementRetryPolicy is the ActivityOptions.RetryPolicy
// PlaceScheduledCallActivity itself runs under: the network_error cadence
// (1/2/4/8/16 min, 5 attempts), since the failures an initial placement
// attempt can actually raise (rejected by the provider, rate limited,
// breaker open) are all in that family. no_answer/busy/voicemail only
// become known once the provider's status webhook reports a connected-but-
// unsuccessful call, which this activity does not wait for (see the
// scheduler entry in DESIGN.md); NonRetryableErrorTypes is always set so an
// activity error tagged non-retryable (invalid_number, upstream_fatal,
// agent inactive) stops the chain regardless of this envelope's own
// cadence.
func DefaultPlacementRetryPolicy() *temporal.RetryPolicy {
	rp := RetryPolicyFor(domain.FailureNetworkError)
	rp.NonRetryableErrorTypes = []string{nonRetryableErrorType}
	return rp
}
