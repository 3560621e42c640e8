package schema

import "strings"

// NormalizeDriverConfig fills defaults and validates a driver config.
func NormalizeDriverConfig(cfg DriverConfig) (DriverConfig, error) {
	switch cfg.LineEnding {
	case "":
		cfg.LineEnding = LineEndingLF
	case LineEndingLF, LineEndingCRLF:
	default:
		return DriverConfig{}, ErrInvalidLineEnding
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = DefaultPromptTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.RestartTimeout <= 0 {
		cfg.RestartTimeout = DefaultRestartTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.InterruptAttempts <= 0 {
		cfg.InterruptAttempts = DefaultInterruptAttempts
	}
	if cfg.CompactThreshold <= 0 {
		cfg.CompactThreshold = DefaultCompactThreshold
	}
	return cfg, nil
}

// NormalizeLineEnding maps a configuration token to a LineEnding.
// Accepted: "lf", "crlf" (case-insensitive), or the literal terminators.
func NormalizeLineEnding(value string) (LineEnding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lf", "\n":
		return LineEndingLF, nil
	case "crlf", "\r\n":
		return LineEndingCRLF, nil
	default:
		return "", ErrInvalidLineEnding
	}
}
