package o11y

import (
	"context"
	"time"
)

// TraceExporter is implemented by backends that capture completed-call data
// for analysis, billing reconciliation, or cost tracking.
type TraceExporter interface {
	// ExportCall sends a completed Call record to the backend.
	ExportCall(ctx context.Context, data CallData) error
}

// CallData captures the details of a single completed Call for export to
// observability/billing backends.
type CallData struct {
	// CallID identifies the Call record.
	CallID string

	// AgentID is the Agent that handled the call.
	AgentID string

	// Direction is "inbound" or "outbound".
	Direction string

	// Provider is the telephony/AI provider stack used (e.g. "twilio").
	Provider string

	// Duration is the wall-clock duration of the call.
	Duration time.Duration

	// Cost is the estimated monetary cost in USD, summed across STT/LLM/TTS usage.
	Cost float64

	// FailureReason is non-empty when the call ended in a failure state.
	FailureReason string

	// Metadata carries additional key-value data such as correlation ids or
	// user-defined labels.
	Metadata map[string]any
}

// MultiExporter fans out call data to multiple TraceExporters. If any
// exporter returns an error, the first error encountered is returned but all
// exporters are still called.
type MultiExporter struct {
	exporters []TraceExporter
}

// NewMultiExporter creates a MultiExporter that writes to all given exporters.
func NewMultiExporter(exporters ...TraceExporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

// ExportCall sends data to every registered exporter. All exporters are
// called even if one returns an error; the first error is returned.
func (m *MultiExporter) ExportCall(ctx context.Context, data CallData) error {
	var firstErr error
	for _, exp := range m.exporters {
		if err := exp.ExportCall(ctx, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
