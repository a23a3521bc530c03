package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// LineSpinner animates a single status line until it is stopped. It is used
// for the short blocking steps before the call screen takes over.
type LineSpinner struct {
	message  string
	spinner  spinner.Spinner
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConnectionSpinner creates a spinner for network operations (Globe style).
func NewConnectionSpinner(message string) *LineSpinner {
	return &LineSpinner{
		message: message,
		spinner: spinner.Globe,
		done:    make(chan struct{}),
	}
}

func (s *LineSpinner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.spinner.FPS)
		defer ticker.Stop()

		for i := 0; ; i++ {
			frame := SpinnerStyle.Render(s.spinner.Frames[i%len(s.spinner.Frames)])
			fmt.Printf("\r%s %s", frame, s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the animation and clears the line.
func (s *LineSpinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Print("\r\033[K")
	})
}

func (s *LineSpinner) Success(message string) {
	s.Stop()
	PrintSuccess(message)
}

func (s *LineSpinner) Error(message string) {
	s.Stop()
	PrintError(message)
}
