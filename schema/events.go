package schema

// ConsoleEventType discriminates console events.
type ConsoleEventType string

const (
	// ConsoleOutput carries bytes destined for terminal display.
	ConsoleOutput ConsoleEventType = "output"
	// ConsoleTitle carries a console title update.
	ConsoleTitle ConsoleEventType = "title"
)

// ConsoleEvent is a UI-facing event emitted by the console pipeline.
type ConsoleEvent struct {
	Type   ConsoleEventType
	Data   []byte // ConsoleOutput payload
	Title  string // ConsoleTitle text
	Append bool   // ConsoleTitle: append to the current title
}
