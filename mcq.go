package genairadio

import (
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	optionsPerQuestion = 4
	minAnswerRunes     = 5
)

// Randomizer is the source of randomness for question generation.
// *rand.Rand satisfies it, so tests can pass a seeded source.
type Randomizer interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// globalRand uses the math/rand top-level functions, which are safe for
// concurrent use.
type globalRand struct{}

func (globalRand) Intn(n int) int                     { return rand.Intn(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// MCQGenerator turns narration sentences into fill-in-the-blank questions
type MCQGenerator struct {
	rnd Randomizer
}

// NewMCQGenerator creates a generator. A nil randomizer uses the shared
// math/rand source.
func NewMCQGenerator(rnd Randomizer) *MCQGenerator {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &MCQGenerator{rnd: rnd}
}

// Generate builds at most count questions from sentences. Sentences are
// visited in random order; those without an eligible word, or without
// enough distractors left after excluding the answer, are skipped. A
// result shorter than count is normal when the text is thin.
func (g *MCQGenerator) Generate(sentences []string, count int, pool *DistractorPool) []Question {
	if count < 1 || pool == nil {
		return []Question{}
	}

	shuffled := make([]string, len(sentences))
	copy(shuffled, sentences)
	g.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	questions := make([]Question, 0, count)
	for _, sentence := range shuffled {
		if len(questions) >= count {
			break
		}
		question, ok := g.makeQuestion(sentence, pool)
		if !ok {
			continue
		}
		questions = append(questions, question)
	}

	VerboseLog("generated %d/%d questions from %d sentences", len(questions), count, len(sentences))
	return questions
}

func (g *MCQGenerator) makeQuestion(sentence string, pool *DistractorPool) (Question, bool) {
	words := scanWords(sentence)
	candidates := eligibleWords(words)
	if len(candidates) == 0 {
		return Question{}, false
	}

	answer := candidates[g.rnd.Intn(len(candidates))]

	distractors := pool.Eligible(answer)
	if len(distractors) < optionsPerQuestion-1 {
		VerboseLog("skipping sentence, only %d distractors besides %q", len(distractors), answer)
		return Question{}, false
	}
	// Partial Fisher-Yates: the first three slots end up a uniform sample.
	for i := 0; i < optionsPerQuestion-1; i++ {
		j := i + g.rnd.Intn(len(distractors)-i)
		distractors[i], distractors[j] = distractors[j], distractors[i]
	}

	options := make([]string, 0, optionsPerQuestion)
	options = append(options, distractors[:optionsPerQuestion-1]...)
	options = append(options, answer)
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		Prompt:        maskWord(sentence, words, answer),
		Options:       options,
		CorrectAnswer: answer,
	}, true
}

// word is a whitespace-delimited token with edge punctuation trimmed.
// start and end are byte offsets of the trimmed word within its sentence.
type word struct {
	text       string
	start, end int
}

func scanWords(sentence string) []word {
	var words []word
	start := -1
	for i, r := range sentence {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = appendWord(words, sentence, start, i)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = appendWord(words, sentence, start, len(sentence))
	}
	return words
}

func appendWord(words []word, sentence string, start, end int) []word {
	field := sentence[start:end]
	left := strings.TrimLeftFunc(field, unicode.IsPunct)
	core := strings.TrimRightFunc(left, unicode.IsPunct)
	if core == "" {
		return words
	}
	offset := start + len(field) - len(left)
	return append(words, word{text: core, start: offset, end: offset + len(core)})
}

// IsEligibleAnswer reports whether w may become a quiz answer: letters
// only and longer than four characters.
func IsEligibleAnswer(w string) bool {
	if utf8.RuneCountInString(w) < minAnswerRunes {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func eligibleWords(words []word) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w.text] || !IsEligibleAnswer(w.text) {
			continue
		}
		seen[w.text] = true
		out = append(out, w.text)
	}
	return out
}

// maskWord replaces every whole-word occurrence of answer with MaskMarker.
// Occurrences embedded in longer words are left alone.
func maskWord(sentence string, words []word, answer string) string {
	var sb strings.Builder
	last := 0
	for _, w := range words {
		if w.text != answer {
			continue
		}
		sb.WriteString(sentence[last:w.start])
		sb.WriteString(MaskMarker)
		last = w.end
	}
	sb.WriteString(sentence[last:])
	return sb.String()
}
