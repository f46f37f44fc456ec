package genairadio

import "time"

// MaskMarker replaces the blanked answer word in a question prompt
const MaskMarker = "_____"

// Topics is the catalog a listener picks from
var Topics = []string{
	"Current Affairs",
	"Sports",
	"AI Technology",
	"Entertainment",
	"Psychology",
	"History",
	"Politics",
}

// TopicsPerPodcast is how many topics make up one episode
const TopicsPerPodcast = 3

// Question represents a single fill-in-the-blank multiple choice question
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// HasOption reports whether selection is one of the question's options
func (q Question) HasOption(selection string) bool {
	for _, option := range q.Options {
		if option == selection {
			return true
		}
	}
	return false
}

// Podcast is a generated episode with the narration that seeds its quiz
type Podcast struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Topics    []string  `json:"topics"`
	Filename  string    `json:"filename"`
	Narration string    `json:"narration"`
	CreatedAt time.Time `json:"created_at"`
}

// PodcastRequest represents a request to generate an episode
type PodcastRequest struct {
	Username string   `json:"username"`
	Topics   []string `json:"topics"`
}

// ValidationResult represents the result of checking a question
type ValidationResult struct {
	Action ValidationAction `json:"action"`
	Reason string           `json:"reason"`
}

// ValidationAction represents what the checker decided to do
type ValidationAction string

const (
	ActionAccept ValidationAction = "accept"
	ActionReject ValidationAction = "reject"
)
