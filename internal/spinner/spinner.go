// Package spinner shows progress through the stages of a long-running job
// (corpus loading, vectorizer fitting, classifier training, evaluation).
package spinner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Spinner animates the current stage and prints a check line for each finished one.
type Spinner struct {
	frames  []string
	delay   time.Duration
	writer  io.Writer
	active  bool
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	message string
	since   time.Time
	now     func() time.Time
	wg      sync.WaitGroup
}

// New creates a spinner whose first stage is message.
// ctx allows for cancellation of the spinner goroutine.
func New(ctx context.Context, writer io.Writer, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		frames:  []string{"◜", "◠", "◝", "◞", "◡", "◟"},
		delay:   100 * time.Millisecond,
		writer:  writer,
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Start begins the animation and the clock of the current stage.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}

	s.active = true
	s.since = s.now()

	s.wg.Add(1)
	go s.run()
}

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}

	s.active = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	if f, ok := s.writer.(*os.File); ok && isTerminal(f) {
		fmt.Fprint(s.writer, "\r\033[2K")
	} else {
		fmt.Fprint(s.writer, "\r")
	}
}

// IsActive returns whether the spinner is currently running
func (s *Spinner) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// UpdateMessage replaces the current stage's message without finishing it.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stage finishes the current stage, printing it with its elapsed time, and
// starts animating the next one. Before Start it only records the message.
func (s *Spinner) Stage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.finishLocked()
	}
	s.message = message
	s.since = s.now()
}

// Done finishes the current stage and stops the spinner.
func (s *Spinner) Done() {
	s.mu.Lock()
	if s.active {
		s.finishLocked()
	}
	s.mu.Unlock()
	s.Stop()
}

// finishLocked writes the completed stage line. Callers hold mu.
func (s *Spinner) finishLocked() {
	elapsed := s.now().Sub(s.since).Round(time.Millisecond)
	fmt.Fprintf(s.writer, "\r\033[2K✓ %s (%s)\n", s.message, elapsed)
}

func (s *Spinner) run() {
	defer s.wg.Done()

	frameIndex := 0
	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			// written under the lock so stage lines never interleave with frames
			s.mu.Lock()
			fmt.Fprintf(s.writer, "\r%s %s", s.frames[frameIndex%len(s.frames)], s.message)
			s.mu.Unlock()
			frameIndex++
		}
	}
}

// Interactive reports whether w is a terminal worth animating on.
func Interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
