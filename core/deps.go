package core

import "pkt.systems/pslog"

// TransmitFunc sends bytes toward the device and returns once the transport
// has accepted them.
type TransmitFunc func(data []byte) error

// TerminalSink receives display-facing callbacks from the driver: raw device
// output and window-title updates. Callbacks are suppressed while the driver
// runs machine-generated code silently.
type TerminalSink interface {
	OnOutputForDisplay(data []byte)
	OnTitleChanged(text string, append bool)
}

// Deps captures optional dependencies for the driver.
type Deps struct {
	Transmit TransmitFunc
	Sink     TerminalSink
	Logger   pslog.Logger
}
