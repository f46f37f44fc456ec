package genairadio

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection is returned when an answer is not one of the
	// current question's options. The session does not advance.
	ErrInvalidSelection = errors.New("selection is not one of the options")
	// ErrQuizCompleted is returned when answering after the last question
	ErrQuizCompleted = errors.New("quiz already completed")
	// ErrQuizNotCompleted is returned when scoring an unfinished quiz
	ErrQuizNotCompleted = errors.New("quiz not completed")
	// ErrStaleAnswer is returned when an answer names a question other than
	// the one awaiting an answer, e.g. a resubmitted form
	ErrStaleAnswer = errors.New("answer is for a question that is not current")
)

// State is the position of a quiz attempt: awaiting the answer to question
// Index, or completed
type State struct {
	Index     int
	Completed bool
}

func (s State) String() string {
	if s.Completed {
		return "Completed"
	}
	return fmt.Sprintf("AwaitingAnswer(%d)", s.Index)
}

// QuizSession tracks one listener's attempt at a podcast quiz. It is owned
// by a single browser session and is not safe for concurrent mutation.
type QuizSession struct {
	podcastID string
	questions []Question
	answers   []*string
	current   int
	completed bool
	requested int
}

// NewQuizSession starts an attempt over questions. requested is the number
// of questions that were asked for, used to flag a short quiz. An empty
// question list yields a session that is already completed.
func NewQuizSession(podcastID string, questions []Question, requested int) *QuizSession {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &QuizSession{
		podcastID: podcastID,
		questions: qs,
		answers:   make([]*string, len(qs)),
		completed: len(qs) == 0,
		requested: requested,
	}
}

// PodcastID returns the podcast whose narration produced the questions
func (s *QuizSession) PodcastID() string { return s.podcastID }

// Len returns the number of questions in the attempt
func (s *QuizSession) Len() int { return len(s.questions) }

// Short reports whether fewer questions were produced than requested
func (s *QuizSession) Short() bool { return len(s.questions) < s.requested }

// Questions returns a copy of the question list
func (s *QuizSession) Questions() []Question {
	out := make([]Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Answer returns the captured answer for question i, if any
func (s *QuizSession) Answer(i int) (string, bool) {
	if i < 0 || i >= len(s.answers) || s.answers[i] == nil {
		return "", false
	}
	return *s.answers[i], true
}

// State returns the current position of the attempt
func (s *QuizSession) State() State {
	return State{Index: s.current, Completed: s.completed}
}

// Completed reports whether every question has been answered
func (s *QuizSession) Completed() bool { return s.completed }

// Current returns the question awaiting an answer
func (s *QuizSession) Current() (Question, bool) {
	if s.completed {
		return Question{}, false
	}
	return s.questions[s.current], true
}

// SubmitAnswer records selection for the current question and advances
func (s *QuizSession) SubmitAnswer(selection string) error {
	if s.completed {
		return ErrQuizCompleted
	}

	question := s.questions[s.current]
	if !question.HasOption(selection) {
		return fmt.Errorf("%w: %q for question %d", ErrInvalidSelection, selection, s.current+1)
	}

	answer := selection
	s.answers[s.current] = &answer
	s.current++
	if s.current == len(s.questions) {
		s.completed = true
	}
	return nil
}

// AnswerQuestion is SubmitAnswer for a caller that knows which question it
// showed. index must be the current question; anything else is rejected
// with ErrStaleAnswer and nothing is recorded.
func (s *QuizSession) AnswerQuestion(index int, selection string) error {
	if s.completed {
		return ErrQuizCompleted
	}
	if index != s.current {
		return fmt.Errorf("%w: got question %d, awaiting %d", ErrStaleAnswer, index+1, s.current+1)
	}
	return s.SubmitAnswer(selection)
}

// Reset clears all answers and returns to the first question
func (s *QuizSession) Reset() {
	s.answers = make([]*string, len(s.questions))
	s.current = 0
	s.completed = len(s.questions) == 0
}

// AnswerResult is the outcome of one question in a scored attempt
type AnswerResult struct {
	Question Question `json:"question"`
	Answer   string   `json:"answer"`
	Correct  bool     `json:"correct"`
}

// Score is the final tally of a completed attempt
type Score struct {
	Correct int            `json:"correct"`
	Total   int            `json:"total"`
	Results []AnswerResult `json:"results"`
}

func (sc Score) String() string {
	return fmt.Sprintf("%d/%d", sc.Correct, sc.Total)
}

// Percent returns the share of correct answers, zero for an empty quiz
func (sc Score) Percent() float64 {
	if sc.Total == 0 {
		return 0
	}
	return float64(sc.Correct) / float64(sc.Total) * 100
}

// Score tallies exact, case-sensitive matches against the correct answers
func (s *QuizSession) Score() (Score, error) {
	if !s.completed {
		return Score{}, ErrQuizNotCompleted
	}

	score := Score{Total: len(s.questions), Results: make([]AnswerResult, 0, len(s.questions))}
	for i, q := range s.questions {
		answer, _ := s.Answer(i)
		correct := answer == q.CorrectAnswer
		if correct {
			score.Correct++
		}
		score.Results = append(score.Results, AnswerResult{Question: q, Answer: answer, Correct: correct})
	}
	return score, nil
}

type sessionSnapshot struct {
	PodcastID string     `json:"podcast_id"`
	Questions []Question `json:"questions"`
	Answers   []*string  `json:"answers"`
	Current   int        `json:"current"`
	Completed bool       `json:"completed"`
	Requested int        `json:"requested"`
}

// MarshalJSON encodes the session so it can live in an external store
func (s *QuizSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionSnapshot{
		PodcastID: s.podcastID,
		Questions: s.questions,
		Answers:   s.answers,
		Current:   s.current,
		Completed: s.completed,
		Requested: s.requested,
	})
}

// UnmarshalJSON decodes a stored session, rejecting inconsistent state
func (s *QuizSession) UnmarshalJSON(data []byte) error {
	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode quiz session: %w", err)
	}

	n := len(snap.Questions)
	if snap.Answers == nil {
		snap.Answers = make([]*string, n)
	}
	if len(snap.Answers) != n {
		return fmt.Errorf("quiz session has %d answers for %d questions", len(snap.Answers), n)
	}
	if snap.Current < 0 || snap.Current > n {
		return fmt.Errorf("quiz session index %d out of range [0, %d]", snap.Current, n)
	}
	if snap.Completed != (snap.Current == n) {
		return fmt.Errorf("quiz session completed=%v inconsistent with index %d of %d", snap.Completed, snap.Current, n)
	}
	for i := snap.Current; i < n; i++ {
		if snap.Answers[i] != nil {
			return fmt.Errorf("quiz session has an answer for unseen question %d", i+1)
		}
	}

	*s = QuizSession{
		podcastID: snap.PodcastID,
		questions: snap.Questions,
		answers:   snap.Answers,
		current:   snap.Current,
		completed: snap.Completed,
		requested: snap.Requested,
	}
	return nil
}

// clone returns a deep copy so stores never hand out shared state
func (s *QuizSession) clone() *QuizSession {
	c := &QuizSession{
		podcastID: s.podcastID,
		questions: make([]Question, len(s.questions)),
		answers:   make([]*string, len(s.answers)),
		current:   s.current,
		completed: s.completed,
		requested: s.requested,
	}
	for i, q := range s.questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		c.questions[i] = q
	}
	for i, a := range s.answers {
		if a != nil {
			v := *a
			c.answers[i] = &v
		}
	}
	return c
}
