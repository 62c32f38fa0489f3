package video

import (
	"strings"
	"sync"
)

// LineRing keeps the last lines written to it. It backs the stderr tail
// attached to encoder failures.
type LineRing struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
}

func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 32
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write stores every non-empty line of p.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		r.add(line)
	}
	return len(p), nil
}

// Add stores one line.
func (r *LineRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(line)
}

func (r *LineRing) add(line string) {
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// LastN returns up to n lines, oldest first.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	out := make([]string, 0, n)
	start := (r.head - n + len(r.lines)) % len(r.lines)
	for i := 0; i < n; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}

// Tail joins the last n lines with " | ".
func (r *LineRing) Tail(n int) string {
	return strings.Join(r.LastN(n), " | ")
}
