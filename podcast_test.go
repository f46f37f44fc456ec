package genairadio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeNarrator struct {
	mu       sync.Mutex
	failures map[string]int // remaining failures per topic, -1 for always
	calls    map[string]int
}

func newFakeNarrator() *fakeNarrator {
	return &fakeNarrator{failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeNarrator) GenerateNarration(_ context.Context, topic string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[topic]++
	if n := f.failures[topic]; n != 0 {
		if n > 0 {
			f.failures[topic] = n - 1
		}
		return "", errors.New("model unavailable")
	}
	return "A story about " + topic + ".", nil
}

type fakeSpeech struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *fakeSpeech) SynthesizeAudio(_ context.Context, text, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("speech unavailable")
	}
	return os.WriteFile(path, []byte(text), 0644)
}

type fakeStore struct {
	mu       sync.Mutex
	err      error
	podcasts []*Podcast
}

func (f *fakeStore) CreatePodcast(p *Podcast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.podcasts = append(f.podcasts, p)
	return nil
}

var fastRetry = RetryPolicy{Timeout: time.Second, MaxTries: 3, InitialInterval: time.Millisecond}

func TestValidateTopics(t *testing.T) {
	tests := []struct {
		name   string
		topics []string
		ok     bool
	}{
		{"three topics", []string{"Sports", "History", "Politics"}, true},
		{"two topics", []string{"Sports", "History"}, false},
		{"four topics", []string{"Sports", "History", "Politics", "Psychology"}, false},
		{"none", nil, false},
		{"unknown topic", []string{"Sports", "History", "Cooking"}, false},
		{"duplicate", []string{"Sports", "Sports", "History"}, false},
		{"wrong case", []string{"sports", "History", "Politics"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopics(tt.topics)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTopics) {
				t.Fatalf("err = %v, want ErrInvalidTopics", err)
			}
		})
	}
}

func TestAssembleNarration(t *testing.T) {
	got := AssembleNarration([]string{"One.", "Two.", "Three."})
	want := podcastIntro + "\n\nOne.\n\nTwo.\n\nThree.\n\n" + podcastOutro
	if got != want {
		t.Fatalf("AssembleNarration = %q, want %q", got, want)
	}
}

func TestPodcastGeneratorGenerate(t *testing.T) {
	audioDir, logDir := t.TempDir(), t.TempDir()
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{}, &fakeStore{}
	pg := NewPodcastGenerator(narrator, speech, store, audioDir, logDir, fastRetry)
	pg.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	topics := []string{"Politics", "Sports", "AI Technology"}
	podcast, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: topics})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := AssembleNarration([]string{
		"A story about Politics.", "A story about Sports.", "A story about AI Technology.",
	})
	if podcast.Narration != want {
		t.Fatalf("narration = %q, want %q", podcast.Narration, want)
	}
	if !regexp.MustCompile(`^podcast_2025-03-04_05-06-07_[0-9a-f]{8}\.mp3$`).MatchString(podcast.Filename) {
		t.Fatalf("filename = %q", podcast.Filename)
	}
	if !strings.HasPrefix(podcast.ID, podcast.Filename[len("podcast_2025-03-04_05-06-07_"):len(podcast.Filename)-len(".mp3")]) {
		t.Fatalf("filename %q does not carry id %q", podcast.Filename, podcast.ID)
	}
	if podcast.Username != "alice" || strings.Join(podcast.Topics, ",") != "Politics,Sports,AI Technology" {
		t.Fatalf("podcast metadata = %+v", podcast)
	}

	audio, err := os.ReadFile(filepath.Join(audioDir, podcast.Filename))
	if err != nil || string(audio) != want {
		t.Fatalf("audio file: %q, %v", audio, err)
	}
	if len(store.podcasts) != 1 || store.podcasts[0].ID != podcast.ID {
		t.Fatalf("stored %+v", store.podcasts)
	}
	if _, err := os.Stat(filepath.Join(logDir, podcast.ID+".log")); err != nil {
		t.Fatalf("transcript missing: %v", err)
	}
}

func TestPodcastGeneratorRejectsTopicsBeforeCalling(t *testing.T) {
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{}, &fakeStore{}
	pg := NewPodcastGenerator(narrator, speech, store, t.TempDir(), "", fastRetry)

	_, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: []string{"Sports", "History"}})
	if !errors.Is(err, ErrInvalidTopics) {
		t.Fatalf("err = %v, want ErrInvalidTopics", err)
	}
	if len(narrator.calls) != 0 || speech.calls != 0 || len(store.podcasts) != 0 {
		t.Fatal("collaborators called for an invalid request")
	}
}

func TestPodcastGeneratorRetriesTransientFailure(t *testing.T) {
	logDir := t.TempDir()
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{}, &fakeStore{}
	narrator.failures["History"] = 2
	pg := NewPodcastGenerator(narrator, speech, store, t.TempDir(), logDir, fastRetry)

	podcast, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: []string{"Sports", "History", "Politics"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if narrator.calls["History"] != 3 {
		t.Fatalf("History narrated %d times, want 3", narrator.calls["History"])
	}
	data, _ := os.ReadFile(filepath.Join(logDir, podcast.ID+".log"))
	if !strings.Contains(string(data), "Narrator attempt 2 failed") {
		t.Fatalf("transcript does not record the failures:\n%s", data)
	}
}

func TestPodcastGeneratorNarrationFailure(t *testing.T) {
	audioDir := t.TempDir()
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{}, &fakeStore{}
	narrator.failures["Politics"] = -1
	pg := NewPodcastGenerator(narrator, speech, store, audioDir, "", fastRetry)

	_, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: []string{"Sports", "History", "Politics"}})
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("err = %v, want ErrUpstreamFailure", err)
	}
	if narrator.calls["Politics"] != fastRetry.MaxTries {
		t.Fatalf("Politics tried %d times, want %d", narrator.calls["Politics"], fastRetry.MaxTries)
	}
	if speech.calls != 0 || len(store.podcasts) != 0 {
		t.Fatal("partial podcast produced")
	}
	if entries, _ := os.ReadDir(audioDir); len(entries) != 0 {
		t.Fatalf("audio written: %v", entries)
	}
}

func TestPodcastGeneratorSpeechFailure(t *testing.T) {
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{fail: true}, &fakeStore{}
	pg := NewPodcastGenerator(narrator, speech, store, t.TempDir(), "", fastRetry)

	_, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: []string{"Sports", "History", "Politics"}})
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("err = %v, want ErrUpstreamFailure", err)
	}
	if speech.calls != fastRetry.MaxTries {
		t.Fatalf("speech tried %d times, want %d", speech.calls, fastRetry.MaxTries)
	}
	if len(store.podcasts) != 0 {
		t.Fatal("podcast stored despite speech failure")
	}
}

func TestPodcastGeneratorCancelledContext(t *testing.T) {
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{}, &fakeStore{}
	narrator.failures["Sports"] = -1
	pg := NewPodcastGenerator(narrator, speech, store, t.TempDir(), "", RetryPolicy{MaxTries: 100, InitialInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := pg.Generate(ctx, PodcastRequest{Username: "alice", Topics: []string{"Sports", "History", "Politics"}})
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("err = %v, want ErrUpstreamFailure", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("generation did not stop when the context expired")
	}
}

func TestPodcastGeneratorCreatesAudioDir(t *testing.T) {
	audioDir := filepath.Join(t.TempDir(), "audio", "episodes")
	narrator, speech, store := newFakeNarrator(), &fakeSpeech{}, &fakeStore{}
	pg := NewPodcastGenerator(narrator, speech, store, audioDir, "", fastRetry)

	podcast, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: []string{"Sports", "History", "Politics"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(audioDir, podcast.Filename)); err != nil {
		t.Fatalf("audio missing: %v", err)
	}
}

func TestPodcastGeneratorStoreFailureRemovesAudio(t *testing.T) {
	audioDir := t.TempDir()
	narrator, speech := newFakeNarrator(), &fakeSpeech{}
	store := &fakeStore{err: errors.New("database is locked")}
	pg := NewPodcastGenerator(narrator, speech, store, audioDir, "", fastRetry)

	_, err := pg.Generate(context.Background(), PodcastRequest{Username: "alice", Topics: []string{"Sports", "History", "Politics"}})
	if err == nil || errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("err = %v, want the store error", err)
	}
	if speech.calls != 1 {
		t.Fatalf("speech calls = %d", speech.calls)
	}
	if entries, _ := os.ReadDir(audioDir); len(entries) != 0 {
		t.Fatalf("audio left behind: %v", entries)
	}
}
