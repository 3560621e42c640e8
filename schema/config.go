package schema

import "time"

// Default driver tuning values.
const (
	// DefaultRunTimeout bounds a full submission round trip.
	DefaultRunTimeout = 20 * time.Second
	// DefaultPromptTimeout bounds a single wait for the idle prompt.
	DefaultPromptTimeout = 5 * time.Second
	// DefaultHandshakeTimeout bounds each raw-paste negotiation read.
	DefaultHandshakeTimeout = time.Second
	// DefaultRestartTimeout bounds the resync wait after a forced restart.
	DefaultRestartTimeout = 8 * time.Second
	// DefaultPollInterval is the sleep between condition polls.
	DefaultPollInterval = 20 * time.Millisecond
	// DefaultInterruptAttempts is the interrupt budget before escalating to restart.
	DefaultInterruptAttempts = 3
	// DefaultCompactThreshold is the buffer size that triggers compaction.
	DefaultCompactThreshold = 256 * 1024
)

// DriverConfig tunes the console driver.
type DriverConfig struct {
	LineEnding        LineEnding
	RunTimeout        time.Duration
	PromptTimeout     time.Duration
	HandshakeTimeout  time.Duration
	RestartTimeout    time.Duration
	PollInterval      time.Duration
	InterruptAttempts int
	CompactThreshold  int
	// TraceWire enables byte-count trace logging on every transmit and
	// receive.
	TraceWire bool
}
