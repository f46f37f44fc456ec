package genairadio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUpstreamFailure marks a failed narration or speech call. The
	// request can be retried; no podcast was stored.
	ErrUpstreamFailure = errors.New("upstream service failed")
	// ErrInvalidTopics is returned unless exactly three distinct catalog topics are chosen
	ErrInvalidTopics = errors.New("invalid topic selection")
)

const (
	podcastIntro = "🎙 Welcome to your General AI Radio!"
	podcastOutro = "That concludes today's podcast. Stay tuned!"
)

// PodcastStore persists generated episodes
type PodcastStore interface {
	CreatePodcast(p *Podcast) error
}

// RetryPolicy bounds each collaborator call
type RetryPolicy struct {
	Timeout         time.Duration // per attempt
	MaxTries        int
	InitialInterval time.Duration
}

// DefaultRetryPolicy is used when a zero policy is given
var DefaultRetryPolicy = RetryPolicy{
	Timeout:         60 * time.Second,
	MaxTries:        3,
	InitialInterval: 500 * time.Millisecond,
}

// PodcastGenerator orchestrates narration, speech synthesis and storage of an episode
type PodcastGenerator struct {
	narrator NarrationWriter
	speech   AudioSynthesizer
	store    PodcastStore
	audioDir string
	logDir   string
	retry    RetryPolicy
	now      func() time.Time
}

// NewPodcastGenerator creates a generator writing audio into audioDir. An
// empty logDir disables per-podcast transcripts.
func NewPodcastGenerator(narrator NarrationWriter, speech AudioSynthesizer, store PodcastStore, audioDir, logDir string, retry RetryPolicy) *PodcastGenerator {
	if retry.MaxTries <= 0 {
		retry.MaxTries = DefaultRetryPolicy.MaxTries
	}
	if retry.Timeout <= 0 {
		retry.Timeout = DefaultRetryPolicy.Timeout
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	return &PodcastGenerator{
		narrator: narrator,
		speech:   speech,
		store:    store,
		audioDir: audioDir,
		logDir:   logDir,
		retry:    retry,
		now:      time.Now,
	}
}

// ValidateTopics checks that exactly three distinct catalog topics were picked
func ValidateTopics(topics []string) error {
	if len(topics) != TopicsPerPodcast {
		return fmt.Errorf("%w: select exactly %d topics, got %d", ErrInvalidTopics, TopicsPerPodcast, len(topics))
	}
	known := make(map[string]bool, len(Topics))
	for _, t := range Topics {
		known[t] = true
	}
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		if !known[t] {
			return fmt.Errorf("%w: unknown topic %q", ErrInvalidTopics, t)
		}
		if seen[t] {
			return fmt.Errorf("%w: topic %q chosen twice", ErrInvalidTopics, t)
		}
		seen[t] = true
	}
	return nil
}

// Generate produces, synthesizes and stores an episode for req. Narration
// for the topics is requested concurrently; any collaborator failure aborts
// the whole episode with ErrUpstreamFailure.
func (pg *PodcastGenerator) Generate(ctx context.Context, req PodcastRequest) (*Podcast, error) {
	if err := ValidateTopics(req.Topics); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := Logger().With("podcast_id", id, "username", req.Username)
	log.Infow("Starting podcast generation", "topics", req.Topics)

	if pg.logDir != "" {
		transcript, err := NewLLMLogger(pg.logDir, id, req)
		if err != nil {
			log.Warnw("Failed to create transcript log, continuing without it", "error", err)
		} else {
			defer transcript.Close()
			ctx = WithLLMLogger(ctx, transcript)
		}
	}

	segments := make([]string, len(req.Topics))
	g, gctx := errgroup.WithContext(ctx)
	for i, topic := range req.Topics {
		g.Go(func() error {
			text, err := pg.narrate(gctx, topic)
			if err != nil {
				return fmt.Errorf("%w: narration for %q: %w", ErrUpstreamFailure, topic, err)
			}
			segments[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorw("Narration failed", "error", err)
		return nil, err
	}

	narration := AssembleNarration(segments)
	created := pg.now()
	filename := fmt.Sprintf("podcast_%s_%s.mp3", created.Format("2006-01-02_15-04-05"), id[:8])

	if err := os.MkdirAll(pg.audioDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	audioPath := filepath.Join(pg.audioDir, filename)
	if err := pg.synthesize(ctx, narration, audioPath); err != nil {
		log.Errorw("Speech synthesis failed", "error", err)
		return nil, fmt.Errorf("%w: speech synthesis: %w", ErrUpstreamFailure, err)
	}

	podcast := &Podcast{
		ID:        id,
		Username:  req.Username,
		Topics:    append([]string(nil), req.Topics...),
		Filename:  filename,
		Narration: narration,
		CreatedAt: created,
	}
	if err := pg.store.CreatePodcast(podcast); err != nil {
		if rmErr := os.Remove(audioPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warnw("Failed to remove orphaned audio", "file", audioPath, "error", rmErr)
		}
		return nil, err
	}

	log.Infow("Podcast generation complete", "filename", filename, "chars", len(narration))
	return podcast, nil
}

// AssembleNarration wraps per-topic segments with the show intro and outro
func AssembleNarration(segments []string) string {
	var sb strings.Builder
	sb.WriteString(podcastIntro)
	sb.WriteString("\n\n")
	for _, s := range segments {
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	sb.WriteString(podcastOutro)
	return sb.String()
}

func (pg *PodcastGenerator) narrate(ctx context.Context, topic string) (string, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (string, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, pg.retry.Timeout)
		defer cancel()

		text, err := pg.narrator.GenerateNarration(callCtx, topic)
		if err != nil {
			llmLoggerFrom(ctx).LogFailure("Narrator", attempt, err)
			if ctx.Err() != nil {
				return "", backoff.Permanent(err)
			}
			Logger().Warnw("Narration attempt failed", "topic", topic, "attempt", attempt, "error", err)
			return "", err
		}
		return text, nil
	}, pg.backoffOptions()...)
}

func (pg *PodcastGenerator) synthesize(ctx context.Context, text, path string) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, pg.retry.Timeout)
		defer cancel()

		err := pg.speech.SynthesizeAudio(callCtx, text, path)
		if err != nil {
			llmLoggerFrom(ctx).LogFailure("Speech", attempt, err)
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			Logger().Warnw("Speech attempt failed", "attempt", attempt, "error", err)
		}
		return struct{}{}, err
	}, pg.backoffOptions()...)
	return err
}

func (pg *PodcastGenerator) backoffOptions() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pg.retry.InitialInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(pg.retry.MaxTries)),
	}
}
