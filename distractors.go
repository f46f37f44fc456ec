package genairadio

// DistractorPool is a small catalog of generic wrong answers
type DistractorPool struct {
	words []string
}

// NewDistractorPool builds a pool, dropping repeated words
func NewDistractorPool(words ...string) *DistractorPool {
	seen := make(map[string]bool, len(words))
	pool := &DistractorPool{words: make([]string, 0, len(words))}
	for _, w := range words {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		pool.words = append(pool.words, w)
	}
	return pool
}

// DefaultDistractors returns the stock catalog used by the web and CLI quizzes
func DefaultDistractors() *DistractorPool {
	return NewDistractorPool("India", "Sports", "Science", "Tech", "Economy", "Health")
}

// Size returns the number of distinct distractors
func (p *DistractorPool) Size() int {
	return len(p.words)
}

// Eligible returns the distractors that differ from exclude (case-sensitive)
func (p *DistractorPool) Eligible(exclude string) []string {
	out := make([]string, 0, len(p.words))
	for _, w := range p.words {
		if w != exclude {
			out = append(out, w)
		}
	}
	return out
}
