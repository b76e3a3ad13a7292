package voicesession

import "strings"

// splitSentences accumulates streamed LLM text deltas and emits complete
// sentences as they close, so TTS can begin speaking the first sentence
// without waiting for the whole response. Call feed repeatedly with each
// delta, then flush once at stream end to emit any trailing partial
// sentence as a final one.
type sentenceSplitter struct {
	buf strings.Builder
}

const sentenceTerminators = ".!?"

// feed appends delta to the buffer and returns any complete sentences found.
func (s *sentenceSplitter) feed(delta string) []string {
	s.buf.WriteString(delta)
	return s.drain(false)
}

// flush returns the remaining buffered text as a final sentence, if non-empty.
func (s *sentenceSplitter) flush() []string {
	return s.drain(true)
}

// splitSentencesForSpeech splits a complete LLM response into the sentences
// the Speaking pipeline synthesizes one at a time.
func splitSentencesForSpeech(text string) []string {
	var splitter sentenceSplitter
	sentences := splitter.feed(text)
	return append(sentences, splitter.flush()...)
}

func (s *sentenceSplitter) drain(final bool) []string {
	text := s.buf.String()
	var sentences []string

	start := 0
	for i, r := range text {
		if strings.ContainsRune(sentenceTerminators, r) {
			end := i + len(string(r))
			// absorb a closing quote or paren immediately following the terminator
			for end < len(text) && (text[end] == '"' || text[end] == '\'' || text[end] == ')') {
				end++
			}
			sentence := strings.TrimSpace(text[start:end])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = end
		}
	}

	s.buf.Reset()
	remainder := text[start:]
	if final {
		if trimmed := strings.TrimSpace(remainder); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	} else {
		s.buf.WriteString(remainder)
	}

	return sentences
}
