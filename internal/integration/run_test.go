package integration_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"pkt.systems/replink"
	"pkt.systems/replink/schema"
)

func startConsole(t *testing.T, sim *deviceSim, opts ...replink.ConsoleOption) replink.Console {
	t.Helper()
	console, err := replink.New(replink.ConsoleConfig{
		TCPAddr: sim.addr(),
		Driver:  fastDriverConfig(),
	}, replink.ConsoleDeps{}, opts...)
	if err != nil {
		t.Fatalf("new console: %v", err)
	}
	if err := console.Start(context.Background()); err != nil {
		t.Fatalf("start console: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = console.Stop(stopCtx)
	})
	return console
}

func TestRunOverTCP(t *testing.T) {
	sim := newDeviceSim(t, true, 32)
	sim.program("print(1+1)", simResult{output: "2\r\n"})
	console := startConsole(t, sim)

	resp, err := console.Driver().Run(schema.RunRequest{Code: "print(1+1)"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Output != "2\n" {
		t.Fatalf("expected %q, got %q", "2\n", resp.Output)
	}
	if resp.Window != 32 {
		t.Fatalf("expected negotiated window 32, got %d", resp.Window)
	}
}

func TestRunOverTCPRawFallback(t *testing.T) {
	sim := newDeviceSim(t, false, 0)
	sim.program("print(3)", simResult{output: "3\r\n"})
	console := startConsole(t, sim)

	resp, err := console.Driver().Run(schema.RunRequest{Code: "print(3)"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Window != 0 {
		t.Fatalf("expected no window on fallback, got %d", resp.Window)
	}
	if resp.Output != "3\n" {
		t.Fatalf("expected %q, got %q", "3\n", resp.Output)
	}
}

func TestRunOverTCPDeviceError(t *testing.T) {
	traceback := "Traceback (most recent call last):\r\n  File \"main.py\", line 2\r\nOSError: [Errno 30] Read-only filesystem\r\n"
	sim := newDeviceSim(t, true, 32)
	sim.program("boom()", simResult{errText: traceback})
	console := startConsole(t, sim)

	resp, err := console.Driver().Run(schema.RunRequest{Code: "boom()"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.ExecError == nil || !resp.ExecError.ReadOnlyFilesystem() {
		t.Fatalf("expected EROFS decode, got %+v", resp.ExecError)
	}
}

func TestFileOpsOverTCP(t *testing.T) {
	sim := newDeviceSim(t, true, 64)
	sim.setHandler(func(code string) simResult {
		switch {
		case strings.Contains(code, "ilistdir"):
			return simResult{output: "main.py\t32768\t42\r\nlib\t16384\t0\r\n"}
		case strings.Contains(code, "hexlify"):
			return simResult{output: "68656c6c6f\r\n"} // "hello"
		default:
			return simResult{}
		}
	})
	console := startConsole(t, sim)

	entries, err := console.Files().List("/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "main.py" || !entries[1].Dir {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	data, err := console.Files().ReadFile("/greeting.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", data)
	}
}

func TestConsoleReachesPromptOnBoot(t *testing.T) {
	sim := newDeviceSim(t, true, 32)
	console := startConsole(t, sim)

	// The boot banner ends in the idle prompt; once it lands the mode is known.
	deadline := time.Now().Add(2 * time.Second)
	for console.Driver().Mode() != schema.ModeNormal {
		if time.Now().After(deadline) {
			t.Fatalf("driver never reached normal mode, mode %q", console.Driver().Mode())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
