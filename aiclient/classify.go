package aiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/callwave/callwave/errs"
)

// ClassifyHTTPError normalizes a provider HTTP error into UpstreamTransient
// (retry-eligible at a higher layer) or UpstreamFatal (do not retry), per
// spec.md §4.3. statusCode of 0 means no HTTP response was received.
func ClassifyHTTPError(op string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.As(errs.Wrap(op, errs.UpstreamTransient, err)).WithCode(errs.CodeProviderUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.As(errs.Wrap(op, errs.UpstreamTransient, err)).WithCode(errs.CodeProviderUnavailable)
	}
	switch {
	case statusCode == 0:
		return errs.As(errs.Wrap(op, errs.UpstreamTransient, err)).WithCode(errs.CodeProviderUnavailable)
	case statusCode == http.StatusTooManyRequests:
		return errs.As(errs.Wrap(op, errs.UpstreamTransient, err)).WithCode(errs.CodeProviderUnavailable)
	case statusCode >= 500:
		return errs.As(errs.Wrap(op, errs.UpstreamTransient, err)).WithCode(errs.CodeProviderUnavailable)
	case statusCode >= 400:
		return errs.Wrap(op, errs.UpstreamFatal, err)
	default:
		return errs.Wrap(op, errs.UpstreamFatal, err)
	}
}

// looksTransient is a fallback classifier for SDKs that don't surface a
// status code directly, matching on the error text for common transient
// conditions (connection reset, timeout, EOF mid-stream).
func looksTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"reset", "timeout", "timed out", "eof", "broken pipe", "connection refused", "temporarily unavailable"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// ClassifyStreamError normalizes a mid-stream error from an SDK that does
// not expose an HTTP status code.
func ClassifyStreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	if looksTransient(err) {
		return errs.As(errs.Wrap(op, errs.UpstreamTransient, err)).WithCode(errs.CodeProviderUnavailable)
	}
	return errs.Wrap(op, errs.UpstreamFatal, err)
}
