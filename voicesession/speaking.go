package voicesession

import (
	"context"

	"github.com/callwave/callwave/audio"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
)

// speak synthesizes and writes each sentence to the media track in order,
// transitioning to StateSpeaking for the duration. It stops early without
// error if the session is barge-in'd out of Speaking; it stops early with an
// error if the writer's transport dies or ctx is cancelled.
func (s *Session) speak(ctx context.Context, sentences []string) error {
	s.mu.Lock()
	if s.state != StateGreeting {
		if !s.transition(StateSpeaking) {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	ctx, span := o11y.StartSpan(ctx, "voicesession.speak", o11y.Attrs{o11y.AttrCallID: s.id})
	defer span.End()

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		if s.interrupted() {
			return nil
		}
		if err := s.speakSentence(ctx, sentence); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// interrupted reports whether the session has left Speaking/Greeting since
// this call's synthesis began (barge-in, or the call ending).
func (s *Session) interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateSpeaking && s.state != StateGreeting
}

// speakSentence synthesizes one sentence, bounded by cfg.TTSSentenceTimeout,
// and writes each resulting frame to the media track with a monotonically
// increasing sequence number, checking transport liveness before every
// write.
func (s *Session) speakSentence(ctx context.Context, sentence string) error {
	timeout := s.cfg.TTSSentenceTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().TTSSentenceTimeout
	}
	sentenceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chunks, ttsCancel, err := s.ttsStreamer.StreamSpeech(sentenceCtx, sentence, s.call.AgentSnapshot.TTSVoiceID)
	if err != nil {
		return err
	}
	defer ttsCancel()

	for {
		select {
		case <-sentenceCtx.Done():
			return sentenceCtx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if chunk.Err != nil {
				return chunk.Err
			}
			if len(chunk.PCM) > 0 {
				if err := s.writeFrames(sentenceCtx, chunk.PCM); err != nil {
					return err
				}
			}
			if chunk.Done {
				return nil
			}
		}
	}
}

// writeFrames splits pcm into provider-shaped frames and writes each in
// order, assigning the next sequence number and bailing out if the
// transport reports it is no longer alive.
func (s *Session) writeFrames(ctx context.Context, pcm []byte) error {
	frames, err := audio.FrameForProvider(pcm)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if !s.writer.Alive() {
			return errs.New("voicesession.writeFrames", errs.Internal, "media transport is no longer alive")
		}
		s.mu.Lock()
		s.sequence++
		seq := s.sequence
		s.mu.Unlock()
		if err := s.writer.WriteFrame(ctx, frame, seq); err != nil {
			return err
		}
	}
	return nil
}
