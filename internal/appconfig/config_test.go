package appconfig

import (
	"testing"
	"time"

	"pkt.systems/replink/schema"
)

func TestDefaultConfigDriverTuning(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Device.Baud != 115200 {
		t.Fatalf("expected default baud 115200, got %d", cfg.Device.Baud)
	}
	driver := cfg.DriverConfig()
	if driver.LineEnding != schema.LineEndingLF {
		t.Fatalf("expected LF line ending, got %q", driver.LineEnding)
	}
	if driver.RunTimeout != schema.DefaultRunTimeout {
		t.Fatalf("expected run timeout %v, got %v", schema.DefaultRunTimeout, driver.RunTimeout)
	}
	if driver.CompactThreshold != schema.DefaultCompactThreshold {
		t.Fatalf("expected compact threshold %d, got %d", schema.DefaultCompactThreshold, driver.CompactThreshold)
	}
}

func TestDriverConfigConversion(t *testing.T) {
	cfg := Config{
		Driver: DriverConfig{
			LineEnding:          "crlf",
			RunTimeoutMS:        1500,
			PromptTimeoutMS:     250,
			HandshakeTimeoutMS:  100,
			RestartTimeoutMS:    4000,
			PollIntervalMS:      5,
			InterruptAttempts:   2,
			CompactThresholdKiB: 64,
		},
		Logging: LoggingConfig{TraceWire: true},
	}
	driver := cfg.DriverConfig()
	if driver.LineEnding != schema.LineEndingCRLF {
		t.Fatalf("expected CRLF, got %q", driver.LineEnding)
	}
	if driver.RunTimeout != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s run timeout, got %v", driver.RunTimeout)
	}
	if driver.CompactThreshold != 64*1024 {
		t.Fatalf("expected 64 KiB threshold, got %d", driver.CompactThreshold)
	}
	if !driver.TraceWire {
		t.Fatalf("expected trace_wire to carry into the driver config")
	}
}
