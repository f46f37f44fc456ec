package genairadio

import (
	"fmt"
	"strings"
)

// CheckQuestion validates a generated question against the quiz rules and
// returns whether it may be shown to a listener
func CheckQuestion(question Question) ValidationResult {
	result := checkQuestion(question)
	VerboseLog("question %q: %s - %s", question.CorrectAnswer, result.Action, result.Reason)
	return result
}

func checkQuestion(q Question) ValidationResult {
	reject := func(format string, args ...interface{}) ValidationResult {
		return ValidationResult{Action: ActionReject, Reason: fmt.Sprintf(format, args...)}
	}

	if len(q.Options) != optionsPerQuestion {
		return reject("expected %d options, got %d", optionsPerQuestion, len(q.Options))
	}

	seen := make(map[string]bool, len(q.Options))
	for _, option := range q.Options {
		if seen[option] {
			return reject("duplicate option %q", option)
		}
		seen[option] = true
	}

	if !seen[q.CorrectAnswer] {
		return reject("correct answer %q is not among the options", q.CorrectAnswer)
	}
	if !IsEligibleAnswer(q.CorrectAnswer) {
		return reject("answer %q is not an eligible word", q.CorrectAnswer)
	}
	if !strings.Contains(q.Prompt, MaskMarker) {
		return reject("prompt has no blank")
	}
	for _, w := range scanWords(q.Prompt) {
		if w.text == q.CorrectAnswer {
			return reject("answer %q still appears in the prompt", q.CorrectAnswer)
		}
	}

	return ValidationResult{Action: ActionAccept, Reason: "well formed"}
}
