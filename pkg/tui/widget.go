package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render

const (
	padding  = 2
	maxWidth = 80
)

type tickMsg time.Time

type mode int

const (
	spin mode = iota
	bar
	text
	done
)

// Widget renders the current stage as a spinner, a progress bar or a line of text.
type Widget struct {
	mode     mode
	title    string
	log      []string // finished stage lines
	spinner  spinner.Model
	progress progress.Model
	percent  float64
	onQuit   func()
}

func NewWidget(onQuit func()) *Widget {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Widget{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		onQuit:   onQuit,
	}
}

func (w *Widget) Init() tea.Cmd {
	return tea.Batch(tickCmd(), w.spinner.Tick)
}

func (w *Widget) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Event:
		return w, w.apply(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			if w.onQuit != nil {
				w.onQuit()
			}
			return w, tea.Quit
		}
		return w, nil

	case tea.WindowSizeMsg:
		w.progress.Width = msg.Width - padding*2 - 4
		if w.progress.Width > maxWidth {
			w.progress.Width = maxWidth
		}
		return w, nil

	case tickMsg:
		if w.mode == done {
			return w, nil
		}
		cmd := w.progress.SetPercent(w.percent)
		return w, tea.Batch(tickCmd(), cmd)

	// FrameMsg is sent when the progress bar wants to animate itself
	case progress.FrameMsg:
		progressModel, cmd := w.progress.Update(msg)
		w.progress = progressModel.(progress.Model)
		return w, cmd

	default:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}
}

func (w *Widget) apply(e Event) tea.Cmd {
	switch e.eventType {
	case eventTypeSpin:
		w.mode = spin
		w.title = e.text
	case eventTypeBar:
		if w.mode != bar || w.title != e.text {
			w.percent = 0
		}
		w.mode = bar
		w.title = e.text
		w.percent = e.percent
	case eventTypeText:
		w.log = append(w.log, e.text)
	case eventTypeDone:
		w.mode = done
		w.title = e.text
		return tea.Quit
	}
	return nil
}

func (w *Widget) View() string {
	pad := strings.Repeat(" ", padding)

	var b strings.Builder
	b.WriteString("\n")
	for _, line := range w.log {
		b.WriteString(pad + line + "\n")
	}
	switch w.mode {
	case spin:
		fmt.Fprintf(&b, "\n%s%s %s\n", pad, w.spinner.View(), w.title)
	case bar:
		b.WriteString("\n" + pad + w.title + "\n\n" + pad + w.progress.ViewAs(w.percent) + "\n")
	case done:
		b.WriteString("\n" + pad + w.title + "\n")
		return b.String()
	}
	b.WriteString("\n" + pad + helpStyle("Press q to cancel") + "\n")
	return b.String()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
