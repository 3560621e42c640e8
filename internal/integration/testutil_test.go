package integration_test

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/replink/schema"
)

const (
	simBoot       = "MicroPython v1.21.0 on rp2\r\nType \"help()\" for more information.\r\n>>> "
	simRawBanner  = "raw REPL; CTRL-B to exit\r\n>"
	simMarker     = "\x04"
	simFlowRefill = "\x01"
)

type simResult struct {
	output  string
	errText string
}

// deviceSim scripts a MicroPython-style console behind a TCP listener. Unlike
// an in-process fake it parses the driver's transmissions byte by byte, so
// coalesced or split writes behave like they would on a real wire.
type deviceSim struct {
	t        *testing.T
	listener net.Listener
	rawPaste bool
	window   int

	mu       sync.Mutex
	programs map[string]simResult
	handler  func(code string) simResult
	received strings.Builder

	conn     net.Conn
	state    string // "normal", "raw", "paste", "collect"
	code     strings.Builder
	consumed int
	pending  []byte // partial raw-paste enable sequence
}

func newDeviceSim(t *testing.T, rawPaste bool, window int) *deviceSim {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	sim := &deviceSim{
		t:        t,
		listener: listener,
		rawPaste: rawPaste,
		window:   window,
		programs: make(map[string]simResult),
		state:    "normal",
	}
	t.Cleanup(func() { _ = listener.Close() })
	go sim.serve()
	return sim
}

func (s *deviceSim) addr() string {
	return s.listener.Addr().String()
}

func (s *deviceSim) program(code string, result simResult) {
	s.mu.Lock()
	s.programs[code] = result
	s.mu.Unlock()
}

func (s *deviceSim) setHandler(fn func(code string) simResult) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *deviceSim) receivedBytes() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received.String()
}

func (s *deviceSim) serve() {
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.state = "normal"
	s.mu.Unlock()

	s.reply(simBoot)

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.received.Write(buf[:n])
			for _, b := range buf[:n] {
				s.feed(b)
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (s *deviceSim) reply(text string) {
	conn := s.conn
	if conn == nil {
		return
	}
	if _, err := conn.Write([]byte(text)); err != nil {
		s.t.Logf("sim write failed: %v", err)
	}
}

// feed consumes one transmitted byte; the caller holds the mutex.
func (s *deviceSim) feed(b byte) {
	switch s.state {
	case "normal":
		switch b {
		case 0x03:
			s.reply("\r\nKeyboardInterrupt\r\n>>> ")
		case 0x01:
			s.state = "raw"
			s.reply(simRawBanner)
		case 0x04:
			s.reply("\r\n" + simBoot)
		case '\r':
			s.reply("\r\n>>> ")
		}
	case "raw":
		if len(s.pending) > 0 {
			s.pending = append(s.pending, b)
			if len(s.pending) == 3 {
				enable := string(s.pending)
				s.pending = nil
				if enable == "\x05A\x01" {
					s.enterPaste()
				}
			}
			return
		}
		switch b {
		case 0x05:
			s.pending = []byte{b}
		case 0x02:
			s.state = "normal"
			s.reply("\r\n>>> ")
		case 0x03:
			s.reply("\r\n>")
		case 0x04:
			s.state = "normal"
			s.reply("\r\n" + simBoot)
		}
	case "paste":
		switch b {
		case 0x04:
			s.execute("")
		case 0x03:
		default:
			s.code.WriteByte(b)
			s.consumed++
			if s.consumed >= s.window {
				s.consumed -= s.window
				s.reply(simFlowRefill)
			}
		}
	case "collect":
		switch b {
		case 0x04:
			s.execute("OK")
		case 0x03:
		default:
			s.code.WriteByte(b)
		}
	}
}

func (s *deviceSim) enterPaste() {
	if s.rawPaste {
		s.state = "paste"
		s.code.Reset()
		s.consumed = 0
		lo := byte(s.window & 0xff)
		hi := byte(s.window >> 8)
		s.reply("R\x01" + string([]byte{lo, hi}) + "\x01")
		return
	}
	s.state = "collect"
	s.code.Reset()
	s.reply("R\x00")
}

func (s *deviceSim) execute(ack string) {
	s.state = "raw"
	code := s.code.String()
	result, ok := s.programs[code]
	if !ok && s.handler != nil {
		result = s.handler(code)
	}
	s.reply(ack + simMarker + result.output + simMarker + result.errText + simMarker + ">")
}

func fastDriverConfig() schema.DriverConfig {
	return schema.DriverConfig{
		RunTimeout:       2 * time.Second,
		PromptTimeout:    time.Second,
		HandshakeTimeout: 500 * time.Millisecond,
		RestartTimeout:   time.Second,
		PollInterval:     time.Millisecond,
	}
}
