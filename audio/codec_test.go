package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/errs"
)

func TestMulawRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 5000, -5000, 32000, -32000}
	for _, s := range samples {
		encoded := mulawEncodeSample(s)
		decoded := mulawDecodeSample(encoded)
		// u-law is lossy; tolerate quantization error proportional to magnitude.
		diff := int(decoded) - int(s)
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 300, "sample %d decoded as %d", s, decoded)
	}
}

func TestDecodeMulaw8kToLinearPCM16k_DoublesLength(t *testing.T) {
	ulaw := []byte{0xFF, 0x7F, 0x00, 0x80}
	pcm16k, err := DecodeMulaw8kToLinearPCM16k(ulaw)
	require.NoError(t, err)
	assert.Len(t, pcm16k, len(ulaw)*2)
}

func TestDecodeMulaw8kToLinearPCM16k_EmptyInput(t *testing.T) {
	_, err := DecodeMulaw8kToLinearPCM16k(nil)
	require.Error(t, err)
	assert.Equal(t, errs.CodeAudioFormat, errs.As(err).Code)
}

func TestLinearPCM16kToPCM8kLE16_HalvesLength(t *testing.T) {
	pcm16k := make([]int16, 8)
	out, err := LinearPCM16kToPCM8kLE16(pcm16k)
	require.NoError(t, err)
	assert.Len(t, out, 4*2) // 4 samples, 2 bytes each
}

func TestLinearPCM16kToPCM8kLE16_EmptyInput(t *testing.T) {
	_, err := LinearPCM16kToPCM8kLE16(nil)
	require.Error(t, err)
	assert.Equal(t, errs.CodeAudioFormat, errs.As(err).Code)
}

func TestRoundTripThroughCodec(t *testing.T) {
	ulaw := make([]byte, 160) // 20ms @ 8kHz
	for i := range ulaw {
		ulaw[i] = byte(i)
	}
	pcm16k, err := DecodeMulaw8kToLinearPCM16k(ulaw)
	require.NoError(t, err)

	pcm8kLE, err := LinearPCM16kToPCM8kLE16(pcm16k)
	require.NoError(t, err)
	assert.Len(t, pcm8kLE, len(ulaw)*2)
}

func TestFrameForProvider_ExactMultiple(t *testing.T) {
	pcm := make([]byte, FrameSize*3)
	frames, err := FrameForProvider(pcm)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.Len(t, f, FrameSize)
	}
}

func TestFrameForProvider_PadsFinalShortFrame(t *testing.T) {
	pcm := make([]byte, FrameSize+10)
	for i := range pcm {
		pcm[i] = 0xAB
	}
	frames, err := FrameForProvider(pcm)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Len(t, frames[1], FrameSize)
	// Tail beyond the real data is zero-padded silence.
	for i := 10; i < FrameSize; i++ {
		assert.Equal(t, byte(0), frames[1][i])
	}
}

func TestFrameForProvider_EmptyInput(t *testing.T) {
	_, err := FrameForProvider(nil)
	require.Error(t, err)
	assert.Equal(t, errs.CodeAudioFormat, errs.As(err).Code)
}

func TestFrameForProvider_NeverExceedsMaxFrameSize(t *testing.T) {
	pcm := make([]byte, FrameSize*10)
	frames, err := FrameForProvider(pcm)
	require.NoError(t, err)
	for _, f := range frames {
		assert.LessOrEqual(t, len(f), MaxFrameSize)
		assert.Equal(t, 0, len(f)%FrameSize)
	}
}
