// Package status implements a small indented-text status tree used by
// the admin /status endpoint and a SIGUSR1 dump: callers Emit lines,
// Fork a nested consumer for a sub-component, and Join it back in once
// that sub-component is done writing.
package status

import (
	"strings"
	"sync"
)

// StatusConsumer accumulates indented status lines from a tree of
// components and renders them once the root is Wait()ed on.
type StatusConsumer struct {
	mu       *sync.Mutex
	depth    int
	lines    *[]string
	pending  *int
	done     chan struct{}
	doneOnce *sync.Once
}

// NewStatusConsumer creates a root consumer. The returned channel-backed
// Wait() call blocks until every Fork()ed child has been Join()ed.
func NewStatusConsumer() *StatusConsumer {
	lines := make([]string, 0, 16)
	pending := 1
	return &StatusConsumer{
		mu:       new(sync.Mutex),
		depth:    0,
		lines:    &lines,
		pending:  &pending,
		done:     make(chan struct{}),
		doneOnce: new(sync.Once),
	}
}

// Emit appends a line at this consumer's current indent depth.
func (sc *StatusConsumer) Emit(line string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	*sc.lines = append(*sc.lines, strings.Repeat("  ", sc.depth)+line)
}

// Fork returns a child consumer one indent level deeper, sharing the
// same backing line buffer. Every Fork must be matched with a Join.
func (sc *StatusConsumer) Fork() *StatusConsumer {
	sc.mu.Lock()
	*sc.pending++
	sc.mu.Unlock()
	return &StatusConsumer{
		mu:       sc.mu,
		depth:    sc.depth + 1,
		lines:    sc.lines,
		pending:  sc.pending,
		done:     sc.done,
		doneOnce: sc.doneOnce,
	}
}

// Join signals that this consumer (and everything it emitted or forked)
// is finished. When the last outstanding Fork is Joined, Wait unblocks.
func (sc *StatusConsumer) Join() {
	sc.mu.Lock()
	*sc.pending--
	remaining := *sc.pending
	sc.mu.Unlock()
	if remaining == 0 {
		sc.doneOnce.Do(func() { close(sc.done) })
	}
}

// Wait blocks until the root and every forked child has Joined, then
// returns the accumulated, newline-joined status text.
func (sc *StatusConsumer) Wait() string {
	<-sc.done
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return strings.Join(*sc.lines, "\n")
}

// StatusEmitter is implemented by any component that can describe its
// current state onto a forked StatusConsumer.
type StatusEmitter interface {
	Status(sc *StatusConsumer)
}
