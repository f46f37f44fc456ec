package genairadio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LLMLogger writes a transcript of every model call made for one podcast
type LLMLogger struct {
	file      *os.File
	mu        sync.Mutex
	podcastID string
}

// NewLLMLogger creates a transcript file <dir>/<podcastID>.log
func NewLLMLogger(dir, podcastID string, req PodcastRequest) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", podcastID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file:      file,
		podcastID: podcastID,
	}

	logger.Logf("=== Podcast Generation Log ===\n")
	logger.Logf("Podcast ID: %s\n", podcastID)
	logger.Logf("Listener: %s\n", req.Username)
	logger.Logf("Topics: %s\n", strings.Join(req.Topics, ", "))
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("==============================\n\n")

	return logger, nil
}

// Logf writes a timestamped entry. A nil logger discards it.
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	if ll == nil {
		return
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogLLMRequest logs a model request
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", module)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse logs a model response
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", module)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogFailure records a failed call and whether it will be retried
func (ll *LLMLogger) LogFailure(module string, attempt int, err error) {
	ll.Logf("%s attempt %d failed: %v\n", module, attempt, err)
}

// Close writes the footer and closes the file
func (ll *LLMLogger) Close() error {
	if ll == nil {
		return nil
	}
	ll.Logf("=== Podcast Generation Complete ===\n")
	ll.Logf("Completed: %s\n", time.Now().Format(time.RFC3339))

	ll.mu.Lock()
	defer ll.mu.Unlock()
	if ll.file == nil {
		return nil
	}
	err := ll.file.Close()
	ll.file = nil
	return err
}
