package genairadio

// DefaultQuizLength is the number of questions asked for per attempt
const DefaultQuizLength = 5

// QuizBuilder turns podcast narration into a fresh quiz attempt
type QuizBuilder struct {
	generator   *MCQGenerator
	distractors *DistractorPool
	length      int
}

// NewQuizBuilder creates a builder. length <= 0 uses DefaultQuizLength and a
// nil pool uses DefaultDistractors.
func NewQuizBuilder(generator *MCQGenerator, distractors *DistractorPool, length int) *QuizBuilder {
	if generator == nil {
		generator = NewMCQGenerator(nil)
	}
	if distractors == nil {
		distractors = DefaultDistractors()
	}
	if length <= 0 {
		length = DefaultQuizLength
	}
	return &QuizBuilder{generator: generator, distractors: distractors, length: length}
}

// Length returns the number of questions each attempt asks for
func (qb *QuizBuilder) Length() int { return qb.length }

// Build segments narration, generates questions and starts a new attempt.
// Questions failing CheckQuestion are dropped, so the attempt may be short.
func (qb *QuizBuilder) Build(podcastID, narration string) *QuizSession {
	sentences := Segment(narration)
	generated := qb.generator.Generate(sentences, qb.length, qb.distractors)

	accepted := make([]Question, 0, len(generated))
	for _, q := range generated {
		if result := CheckQuestion(q); result.Action != ActionAccept {
			Logger().Warnw("dropping malformed question", "podcast_id", podcastID, "reason", result.Reason)
			continue
		}
		accepted = append(accepted, q)
	}

	session := NewQuizSession(podcastID, accepted, qb.length)
	if session.Short() {
		Logger().Infow("narration yielded a short quiz",
			"podcast_id", podcastID, "questions", len(accepted), "requested", qb.length)
	}
	return session
}
