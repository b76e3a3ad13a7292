package twilio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
)

// inboundEnvelope is the subset of fields every inbound WS frame shares,
// per spec.md §6's "Telephony WebSocket (inbound, to the orchestrator)".
type inboundEnvelope struct {
	Event string          `json:"event"`
	Start *startPayload   `json:"start,omitempty"`
	Media *mediaPayload   `json:"media,omitempty"`
	Stop  *stopPayload    `json:"stop,omitempty"`
	Mark  *markAckPayload `json:"mark,omitempty"`
	DTMF  *dtmfPayload    `json:"dtmf,omitempty"`
}

type startPayload struct {
	StreamSID        string            `json:"stream_sid"`
	CallSID          string            `json:"call_sid"`
	CustomParameters map[string]string `json:"custom_parameters,omitempty"`
}

type mediaPayload struct {
	StreamSID      string     `json:"stream_sid"`
	SequenceNumber uint64     `json:"sequence_number"`
	Media          mediaInner `json:"media"`
}

type mediaInner struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"` // base64
}

type stopPayload struct {
	Reason string `json:"reason"`
}

type markAckPayload struct {
	Name string `json:"name"`
}

type dtmfPayload struct {
	Digit string `json:"digit"`
}

// outboundMediaFrame is the `media` message emitted to the provider, per
// spec.md §6's "Frames to provider".
type outboundMediaFrame struct {
	Event string                 `json:"event"`
	Media outboundMediaFrameBody `json:"media"`
}

type outboundMediaFrameBody struct {
	StreamSID      string     `json:"stream_sid"`
	SequenceNumber uint64     `json:"sequence_number"`
	Media          mediaInner `json:"media"`
}

type clearFrame struct {
	Event     string `json:"event"`
	StreamSID string `json:"stream_sid"`
}

// SessionHandler is invoked once per live call to drive the rest of the
// orchestrator; MediaConn gives it the latched stream_sid/call_sid and a
// channel of decoded inbound media.
type SessionHandler interface {
	// HandleStart is called once, when the first `start` frame latches
	// stream_sid/call_sid.
	HandleStart(ctx context.Context, conn *MediaConn, streamSID, callSID string)
	// HandleMedia is called for every inbound `media` frame, with the
	// base64-decoded wire payload (still in the provider's wire format;
	// audio.DecodeMulaw8kToLinearPCM16k or equivalent is the caller's
	// responsibility, matching voicesession.Session.PushAudio's contract of
	// accepting raw STT-ready bytes).
	HandleMedia(ctx context.Context, payload []byte)
	// HandleStop is called once, when a `stop` frame (or the WS closing)
	// ends the call.
	HandleStop(ctx context.Context, reason string)
}

// MediaConn wraps one telephony media WebSocket connection, serializing
// every outbound frame through a single writer per spec.md §4.6's "Incoming
// media frames and outgoing media frames are serialized per session
// (single-writer to the WS)". It implements voicesession.MediaWriter.
//
// Grounded on the teacher's pkg/server/providers/rest/server.go Start/Stop
// graceful-shutdown idiom, generalized from one listener-wide HTTP server to
// one per-connection read/write pump.
type MediaConn struct {
	conn   *websocket.Conn
	logger *o11y.Logger

	writeMu sync.Mutex
	alive   bool

	streamSID string
	callSID   string
}

// NewMediaConn wraps an already-upgraded *websocket.Conn.
func NewMediaConn(conn *websocket.Conn, logger *o11y.Logger) *MediaConn {
	if logger == nil {
		logger = o11y.NewLogger()
	}
	return &MediaConn{conn: conn, logger: logger, alive: true}
}

// Alive reports whether the underlying transport is still usable.
func (m *MediaConn) Alive() bool {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.alive
}

func (m *MediaConn) markDead() {
	m.writeMu.Lock()
	m.alive = false
	m.writeMu.Unlock()
}

// WriteFrame implements voicesession.MediaWriter: it writes one outbound
// media frame carrying payload (already provider-shaped: a positive
// multiple of audio.FrameSize bytes, ≤ audio.MaxFrameSize) as base64, tagged
// with sequenceNumber.
func (m *MediaConn) WriteFrame(ctx context.Context, payload []byte, sequenceNumber uint64) error {
	const op = "twilio.MediaConn.WriteFrame"
	if !m.Alive() {
		return errs.New(op, errs.Internal, "media connection is no longer alive")
	}

	frame := outboundMediaFrame{
		Event: "media",
		Media: outboundMediaFrameBody{
			StreamSID:      m.streamSID,
			SequenceNumber: sequenceNumber,
			Media: mediaInner{
				Track:     "outbound",
				Payload:   base64.StdEncoding.EncodeToString(payload),
				Timestamp: currentTimestampMs(),
			},
		},
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.conn.WriteJSON(frame); err != nil {
		m.alive = false
		return errs.Wrap(op, errs.UpstreamTransient, err)
	}
	return nil
}

// Clear sends a `clear` frame, cancelling any server-side queued audio the
// provider is still playing out, used when a barge-in needs to silence
// audio the provider has already buffered beyond what WriteFrame's ordering
// alone can stop.
func (m *MediaConn) Clear(ctx context.Context) error {
	const op = "twilio.MediaConn.Clear"
	if !m.Alive() {
		return nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.conn.WriteJSON(clearFrame{Event: "clear", StreamSID: m.streamSID}); err != nil {
		m.alive = false
		return errs.Wrap(op, errs.UpstreamTransient, err)
	}
	return nil
}

func currentTimestampMs() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Serve reads inbound frames until the connection closes or ctx is done,
// dispatching to handler and latching stream_sid/call_sid at the first
// `start` frame.
func (m *MediaConn) Serve(ctx context.Context, handler SessionHandler) error {
	defer m.markDead()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := m.conn.ReadMessage()
		if err != nil {
			handler.HandleStop(ctx, "connection closed: "+err.Error())
			return nil
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			m.logger.Warn(ctx, "malformed inbound frame", "error", err)
			continue
		}

		switch env.Event {
		case "connected":
			// No payload required for this spec.
		case "start":
			if env.Start == nil {
				continue
			}
			m.streamSID = env.Start.StreamSID
			m.callSID = env.Start.CallSID
			handler.HandleStart(ctx, m, m.streamSID, m.callSID)
		case "media":
			if env.Media == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(env.Media.Media.Payload)
			if err != nil {
				m.logger.Warn(ctx, "malformed media payload", "error", err)
				continue
			}
			handler.HandleMedia(ctx, payload)
		case "dtmf":
			// Accepted but not acted on in the core; pass-through to
			// observability only.
			if env.DTMF != nil {
				m.logger.Info(ctx, "dtmf received", "digit", env.DTMF.Digit)
			}
		case "mark":
			// Acknowledgement of an outbound mark; nothing to do without a
			// pending-marks tracker, which this bridge does not maintain.
		case "stop":
			reason := ""
			if env.Stop != nil {
				reason = env.Stop.Reason
			}
			handler.HandleStop(ctx, reason)
			return nil
		}
	}
}
