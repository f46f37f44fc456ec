package genairadio

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
	tokenizerErr  error
)

func sentenceTokenizer() (*sentences.DefaultSentenceTokenizer, error) {
	tokenizerOnce.Do(func() {
		tokenizer, tokenizerErr = english.NewSentenceTokenizer(nil)
	})
	return tokenizer, tokenizerErr
}

// Segment splits narration text into sentences in their original order.
// Blank input yields no sentences; text without terminal punctuation is a
// single sentence.
func Segment(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	tok, err := sentenceTokenizer()
	if err != nil {
		// The english training data is compiled in, so this only fires on a
		// broken build. Fall back to the whole text as one sentence.
		Logger().Errorw("sentence tokenizer unavailable", "error", err)
		return []string{text}
	}

	out := make([]string, 0, 8)
	for _, s := range tok.Tokenize(text) {
		sentence := strings.TrimSpace(s.Text)
		if sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}
