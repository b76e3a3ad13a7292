package voicesession

import (
	"reflect"
	"testing"
)

func TestSentenceSplitterEmitsOnTerminator(t *testing.T) {
	var s sentenceSplitter
	got := s.feed("Hello there.")
	want := []string{"Hello there."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSentenceSplitterHoldsPartialUntilTerminator(t *testing.T) {
	var s sentenceSplitter
	if got := s.feed("Hello "); got != nil {
		t.Fatalf("expected no sentences yet, got %v", got)
	}
	got := s.feed("there. How are you")
	want := []string{"Hello there."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSentenceSplitterFlushEmitsTrailingPartial(t *testing.T) {
	var s sentenceSplitter
	s.feed("How are you")
	got := s.flush()
	want := []string{"How are you"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSentenceSplitterHandlesMultipleSentencesInOneFeed(t *testing.T) {
	var s sentenceSplitter
	got := s.feed("Hi! How are you? Great.")
	want := []string{"Hi!", "How are you?", "Great."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSentenceSplitterAbsorbsClosingQuote(t *testing.T) {
	var s sentenceSplitter
	got := s.feed(`She said "hello." Then left.`)
	want := []string{`She said "hello."`, "Then left."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitSentencesForSpeechConcatenatesFeedAndFlush(t *testing.T) {
	got := splitSentencesForSpeech("First one. Second one")
	want := []string{"First one.", "Second one"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitSentencesForSpeechEmptyInput(t *testing.T) {
	if got := splitSentencesForSpeech(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
