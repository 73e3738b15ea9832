package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI reports pipeline progress through a bubbletea widget. It satisfies
// progress.Reporter; all calls are safe from many goroutines.
type TUI struct {
	program *tea.Program
	done    chan struct{}
	err     error

	mu    sync.Mutex
	title string
	max   int
	count int
}

// New builds the program. cancel is called when the user quits the view.
func New(cancel context.CancelFunc, opts ...tea.ProgramOption) *TUI {
	return &TUI{
		program: tea.NewProgram(NewWidget(cancel), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (t *TUI) Start() {
	go func() {
		defer close(t.done)
		_, t.err = t.program.Run()
	}()
}

// Stop shows msg as the last line and waits for the program to exit.
func (t *TUI) Stop(msg string) error {
	t.program.Send(NewEventDone(msg))
	<-t.done
	return t.err
}

func (t *TUI) Spinner(desc string) {
	t.mu.Lock()
	t.title, t.max, t.count = desc, -1, 0
	t.mu.Unlock()
	t.program.Send(NewEventSpin(desc))
}

func (t *TUI) Reset(max int, desc string) {
	t.mu.Lock()
	t.title, t.max, t.count = desc, max, 0
	t.mu.Unlock()
	t.program.Send(NewEventBar(desc, 0))
}

func (t *TUI) Add(n int) {
	t.mu.Lock()
	t.count += n
	ev, ok := t.bar()
	t.mu.Unlock()
	if ok {
		t.program.Send(ev)
	}
}

func (t *TUI) Text(msg string) {
	t.program.Send(NewEventText(msg))
}

func (t *TUI) Finish() {
	t.mu.Lock()
	if t.max > 0 {
		t.count = t.max
	}
	ev, ok := t.bar()
	t.mu.Unlock()
	if ok {
		t.program.Send(ev)
	}
}

func (t *TUI) bar() (Event, bool) {
	if t.max <= 0 {
		return Event{}, false
	}
	return NewEventBar(t.title, float64(t.count)/float64(t.max)), true
}
