package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/replink/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Device        DeviceConfig  `mapstructure:"device" yaml:"device"`
	Driver        DriverConfig  `mapstructure:"driver" yaml:"driver"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// DeviceConfig selects the byte channel to the board.
type DeviceConfig struct {
	Port    string `mapstructure:"port" yaml:"port"`
	Baud    int    `mapstructure:"baud" yaml:"baud"`
	TCPAddr string `mapstructure:"tcp_addr" yaml:"tcp_addr"`
}

// DriverConfig tunes the console protocol driver. Durations are expressed
// in milliseconds to keep the YAML flat; line_ending takes "lf" or "crlf".
type DriverConfig struct {
	LineEnding          string `mapstructure:"line_ending" yaml:"line_ending"`
	RunTimeoutMS        int    `mapstructure:"run_timeout_ms" yaml:"run_timeout_ms"`
	PromptTimeoutMS     int    `mapstructure:"prompt_timeout_ms" yaml:"prompt_timeout_ms"`
	HandshakeTimeoutMS  int    `mapstructure:"handshake_timeout_ms" yaml:"handshake_timeout_ms"`
	RestartTimeoutMS    int    `mapstructure:"restart_timeout_ms" yaml:"restart_timeout_ms"`
	PollIntervalMS      int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	InterruptAttempts   int    `mapstructure:"interrupt_attempts" yaml:"interrupt_attempts"`
	CompactThresholdKiB int    `mapstructure:"compact_threshold_kib" yaml:"compact_threshold_kib"`
}

// SSHConfig configures the optional SSH console bridge.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// LoggingConfig controls wire-level trace logging.
type LoggingConfig struct {
	TraceWire bool `mapstructure:"trace_wire" yaml:"trace_wire"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Device: DeviceConfig{
			Port:    "",
			Baud:    115200,
			TCPAddr: "",
		},
		Driver: DriverConfig{
			LineEnding:          "lf",
			RunTimeoutMS:        int(schema.DefaultRunTimeout / time.Millisecond),
			PromptTimeoutMS:     int(schema.DefaultPromptTimeout / time.Millisecond),
			HandshakeTimeoutMS:  int(schema.DefaultHandshakeTimeout / time.Millisecond),
			RestartTimeoutMS:    int(schema.DefaultRestartTimeout / time.Millisecond),
			PollIntervalMS:      int(schema.DefaultPollInterval / time.Millisecond),
			InterruptAttempts:   schema.DefaultInterruptAttempts,
			CompactThresholdKiB: schema.DefaultCompactThreshold / 1024,
		},
		SSH: SSHConfig{
			Addr:               "",
			HostKeyPath:        filepath.Join(home, ".replink", "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(home, ".replink", "authorized_keys"),
		},
		Logging: LoggingConfig{
			TraceWire: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".replink", "config.yaml"), nil
}

// DriverConfig converts the flat YAML tuning into the schema form the
// driver consumes. Call Load first; it validates the line ending token.
func (c Config) DriverConfig() schema.DriverConfig {
	lineEnding, err := schema.NormalizeLineEnding(c.Driver.LineEnding)
	if err != nil {
		lineEnding = schema.LineEndingLF
	}
	return schema.DriverConfig{
		LineEnding:        lineEnding,
		RunTimeout:        time.Duration(c.Driver.RunTimeoutMS) * time.Millisecond,
		PromptTimeout:     time.Duration(c.Driver.PromptTimeoutMS) * time.Millisecond,
		HandshakeTimeout:  time.Duration(c.Driver.HandshakeTimeoutMS) * time.Millisecond,
		RestartTimeout:    time.Duration(c.Driver.RestartTimeoutMS) * time.Millisecond,
		PollInterval:      time.Duration(c.Driver.PollIntervalMS) * time.Millisecond,
		InterruptAttempts: c.Driver.InterruptAttempts,
		CompactThreshold:  c.Driver.CompactThresholdKiB * 1024,
		TraceWire:         c.Logging.TraceWire,
	}
}
