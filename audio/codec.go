// Package audio implements the pure audio conversions the orchestrator
// needs to bridge the telephony wire format (8 kHz µ-law) to the format the
// AI provider adapters expect (16 kHz linear PCM), and back. Every function
// here is pure: no I/O, no provider calls, no package-level state.
package audio

import (
	"encoding/binary"

	"github.com/callwave/callwave/errs"
)

// FrameSize is the provider-mandated media frame payload size: 320 bytes is
// 160 samples, i.e. 20 ms, of 8 kHz, 16-bit mono, little-endian PCM.
const FrameSize = 320

// MaxFrameSize is the upper bound on a single media frame payload.
const MaxFrameSize = 100000

const mulawBias = 0x84

// mulawDecodeSample decodes one G.711 µ-law byte to a 16-bit linear sample.
func mulawDecodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	magnitude := ((int32(mantissa) << 3) + mulawBias) << exponent
	magnitude -= mulawBias
	if sign != 0 {
		magnitude = -magnitude
	}
	if magnitude > 32767 {
		magnitude = 32767
	}
	if magnitude < -32768 {
		magnitude = -32768
	}
	return int16(magnitude)
}

// mulawEncodeSample encodes a 16-bit linear sample to one G.711 µ-law byte.
func mulawEncodeSample(sample int16) byte {
	const clip = 32635

	sign := byte(0)
	s := int32(sample)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | (exponent << 4) | mantissa)
}

// upsampleLinear repeats/interpolates in by factor, linearly blending
// between consecutive samples. Sufficient fidelity for speech at telephony
// sample rates; a polyphase resampler would be a drop-in replacement.
func upsampleLinear(in []int16, factor int) []int16 {
	if factor <= 1 || len(in) == 0 {
		return in
	}
	out := make([]int16, len(in)*factor)
	for i, cur := range in {
		base := i * factor
		out[base] = cur
		next := cur
		if i+1 < len(in) {
			next = in[i+1]
		}
		for j := 1; j < factor; j++ {
			frac := float64(j) / float64(factor)
			out[base+j] = int16(float64(cur)*(1-frac) + float64(next)*frac)
		}
	}
	return out
}

// downsampleLinear picks every factor-th sample of in.
func downsampleLinear(in []int16, factor int) []int16 {
	if factor <= 1 || len(in) == 0 {
		return in
	}
	n := (len(in) + factor - 1) / factor
	out := make([]int16, n)
	for i := range out {
		out[i] = in[i*factor]
	}
	return out
}

// DecodeMulaw8kToLinearPCM16k decodes 8 kHz G.711 µ-law audio to 16 kHz
// linear PCM samples.
func DecodeMulaw8kToLinearPCM16k(ulaw []byte) ([]int16, error) {
	if len(ulaw) == 0 {
		return nil, errs.New("audio.DecodeMulaw8kToLinearPCM16k", errs.Validation, "empty input").WithCode(errs.CodeAudioFormat)
	}
	pcm8k := make([]int16, len(ulaw))
	for i, b := range ulaw {
		pcm8k[i] = mulawDecodeSample(b)
	}
	return upsampleLinear(pcm8k, 2), nil
}

// LinearPCM16SamplesToLE16 serializes 16-bit PCM samples (at whatever sample
// rate the caller decoded them at) to little-endian bytes, the raw format
// voicesession.Session.PushAudio expects from its STT-bound input.
func LinearPCM16SamplesToLE16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// LinearPCM16kToPCM8kLE16 downsamples 16 kHz linear PCM to 8 kHz and
// serializes it as little-endian 16-bit samples, the wire format the
// telephony provider's media frames require.
func LinearPCM16kToPCM8kLE16(pcm16k []int16) ([]byte, error) {
	if len(pcm16k) == 0 {
		return nil, errs.New("audio.LinearPCM16kToPCM8kLE16", errs.Validation, "empty input").WithCode(errs.CodeAudioFormat)
	}
	pcm8k := downsampleLinear(pcm16k, 2)
	out := make([]byte, len(pcm8k)*2)
	for i, s := range pcm8k {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

// EncodeMulaw8k encodes 8 kHz linear PCM samples to G.711 µ-law, for TTS
// providers whose wire format matches the telephony track directly.
func EncodeMulaw8k(pcm8k []int16) []byte {
	out := make([]byte, len(pcm8k))
	for i, s := range pcm8k {
		out[i] = mulawEncodeSample(s)
	}
	return out
}

// FrameForProvider splits a little-endian 16-bit PCM byte stream into
// provider-shaped frames: each a positive multiple of FrameSize bytes and no
// larger than MaxFrameSize, with the final short frame zero-padded (silence)
// to the next FrameSize boundary.
func FrameForProvider(pcm []byte) ([][]byte, error) {
	if len(pcm) == 0 {
		return nil, errs.New("audio.FrameForProvider", errs.Validation, "empty input").WithCode(errs.CodeAudioFormat)
	}

	var frames [][]byte
	for offset := 0; offset < len(pcm); offset += FrameSize {
		end := offset + FrameSize
		if end > len(pcm) {
			frame := make([]byte, FrameSize) // zero-padded silence
			copy(frame, pcm[offset:])
			frames = append(frames, frame)
			break
		}
		frames = append(frames, pcm[offset:end])
	}
	return frames, nil
}
