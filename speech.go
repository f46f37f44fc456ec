package genairadio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// maxSpeechInput is the longest input the speech endpoint accepts
const maxSpeechInput = 4096

// AudioSynthesizer renders narration to an audio file at path
type AudioSynthesizer interface {
	SynthesizeAudio(ctx context.Context, text, path string) error
}

// OpenAISpeech synthesizes MP3 audio with the OpenAI speech endpoint
type OpenAISpeech struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewOpenAISpeech creates a synthesizer. Empty model or voice use tts-1 and alloy.
func NewOpenAISpeech(client *openai.Client, model, voice string) *OpenAISpeech {
	s := &OpenAISpeech{
		client: client,
		model:  openai.TTSModel1,
		voice:  openai.VoiceAlloy,
	}
	if model != "" {
		s.model = openai.SpeechModel(model)
	}
	if voice != "" {
		s.voice = openai.SpeechVoice(voice)
	}
	return s
}

// SynthesizeAudio renders text chunk by chunk and writes the concatenated
// MP3 stream to path. Nothing is left at path if any chunk fails.
func (sp *OpenAISpeech) SynthesizeAudio(ctx context.Context, text, path string) error {
	chunks := chunkForSpeech(text, maxSpeechInput)
	if len(chunks) == 0 {
		return fmt.Errorf("nothing to synthesize")
	}

	return writeAtomically(path, func(w io.Writer) error {
		for i, chunk := range chunks {
			VerboseLog("synthesizing chunk %d/%d (%d chars)", i+1, len(chunks), utf8.RuneCountInString(chunk))
			resp, err := sp.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
				Model:          sp.model,
				Input:          chunk,
				Voice:          sp.voice,
				ResponseFormat: openai.SpeechResponseFormatMp3,
				Speed:          1.0,
			})
			if err != nil {
				return fmt.Errorf("failed to synthesize chunk %d: %w", i+1, err)
			}
			_, err = io.Copy(w, resp)
			resp.Close()
			if err != nil {
				return fmt.Errorf("failed to read audio for chunk %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// writeAtomically streams into a temp file beside path and renames it into
// place once fill succeeds
func writeAtomically(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".audio-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close audio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move audio file into place: %w", err)
	}
	return nil
}

// chunkForSpeech packs whole sentences into chunks of at most limit
// characters. A sentence longer than limit is split at word boundaries.
func chunkForSpeech(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, sentence := range Segment(text) {
		for _, piece := range splitLong(sentence, limit) {
			n := utf8.RuneCountInString(piece)
			if currentLen > 0 && currentLen+1+n > limit {
				flush()
			}
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(piece)
			currentLen += n
		}
	}
	flush()
	return chunks
}

func splitLong(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0
	for _, field := range strings.Fields(s) {
		for utf8.RuneCountInString(field) > limit {
			if currentLen > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
				currentLen = 0
			}
			head, tail := splitRunes(field, limit)
			pieces = append(pieces, head)
			field = tail
		}
		if field == "" {
			continue
		}
		n := utf8.RuneCountInString(field)
		if currentLen > 0 && currentLen+1+n > limit {
			pieces = append(pieces, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(field)
		currentLen += n
	}
	if currentLen > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
