package tui

type eventType int

const (
	eventTypeSpin eventType = iota
	eventTypeBar
	eventTypeText
	eventTypeDone
)

// Event is sent to the widget through the bubbletea program.
type Event struct {
	eventType eventType
	text      string
	percent   float64
}

func NewEventSpin(text string) Event {
	return Event{
		eventType: eventTypeSpin,
		text:      text,
	}
}

func NewEventBar(text string, percent float64) Event {
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}
	return Event{
		eventType: eventTypeBar,
		text:      text,
		percent:   percent,
	}
}

func NewEventText(text string) Event {
	return Event{
		eventType: eventTypeText,
		text:      text,
	}
}

// NewEventDone stops the widget after a final render.
func NewEventDone(text string) Event {
	return Event{
		eventType: eventTypeDone,
		text:      text,
	}
}
