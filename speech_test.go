package genairadio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

func testClient(srv *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func longNarration(sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		sb.WriteString("Listeners across the valley enjoy another calm and curious story. ")
	}
	return sb.String()
}

func TestChunkForSpeech(t *testing.T) {
	text := longNarration(150)
	chunks := chunkForSpeech(text, maxSpeechInput)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > maxSpeechInput {
			t.Fatalf("chunk %d has %d chars", i, n)
		}
	}
	if got, want := strings.Join(strings.Fields(strings.Join(chunks, " ")), " "), strings.Join(strings.Fields(text), " "); got != want {
		t.Fatal("chunks do not reassemble into the original text")
	}
}

func TestChunkForSpeechShortAndEmpty(t *testing.T) {
	if got := chunkForSpeech("Hello there. Welcome back!", 100); len(got) != 1 || got[0] != "Hello there. Welcome back!" {
		t.Fatalf("chunks = %q", got)
	}
	if got := chunkForSpeech("   ", 100); len(got) != 0 {
		t.Fatalf("chunks = %q, want none", got)
	}
}

func TestSplitLong(t *testing.T) {
	pieces := splitLong("aaaaaaaaaa bb cc "+strings.Repeat("d", 25), 10)
	want := []string{"aaaaaaaaaa", "bb cc", "dddddddddd", "dddddddddd", "ddddd"}
	if strings.Join(pieces, "|") != strings.Join(want, "|") {
		t.Fatalf("splitLong = %q, want %q", pieces, want)
	}
}

func TestOpenAISpeechSynthesizeAudio(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		var req openai.CreateSpeechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if utf8.RuneCountInString(req.Input) > maxSpeechInput {
			t.Errorf("input of %d chars exceeds the limit", utf8.RuneCountInString(req.Input))
		}
		if req.Voice != openai.VoiceAlloy || req.Model != openai.TTSModel1 {
			t.Errorf("model/voice = %s/%s", req.Model, req.Voice)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("chunk;"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "audio", "episode.mp3")
	speech := NewOpenAISpeech(testClient(srv), "", "")
	if err := speech.SynthesizeAudio(context.Background(), longNarration(150), path); err != nil {
		t.Fatalf("SynthesizeAudio: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	n := int(calls.Load())
	if n < 2 {
		t.Fatalf("expected chunked requests, got %d", n)
	}
	if string(data) != strings.Repeat("chunk;", n) {
		t.Fatalf("audio = %q", data)
	}
}

func TestOpenAISpeechFailureLeavesNoFile(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		w.Write([]byte("chunk;"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "episode.mp3")
	speech := NewOpenAISpeech(testClient(srv), "", "")
	if err := speech.SynthesizeAudio(context.Background(), longNarration(150), path); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("partial audio left behind: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestOpenAISpeechEmptyText(t *testing.T) {
	speech := NewOpenAISpeech(openai.NewClient("unused"), "", "")
	if err := speech.SynthesizeAudio(context.Background(), "  ", filepath.Join(t.TempDir(), "x.mp3")); err == nil {
		t.Fatal("expected an error for empty text")
	}
}
