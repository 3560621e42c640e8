package core

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/replink/internal/logx"
	"pkt.systems/replink/schema"
)

// Raw-paste handshake bytes.
const (
	rawPasteEnable      = "\x05A\x01"
	rawPasteSupported   = "R\x01"
	rawPasteUnsupported = "R\x00"
	flowRefill          = "\x01"
	flowAbort           = "\x04"
)

// execSession demultiplexes the post-finalization byte stream of one
// submission. The device emits marker, output bytes, marker, error bytes,
// marker; bytes are routed by how many markers have been seen, and the third
// marker resolves the session. Markers may be adjacent when a segment is
// empty.
type execSession struct {
	id      string
	armed   bool
	running bool
	markers int
	output  strings.Builder
	errText strings.Builder
}

func (s *execSession) route(text string) {
	switch s.markers {
	case 1:
		s.output.WriteString(text)
	case 2:
		s.errText.WriteString(text)
	}
}

// pumpSessionLocked advances the demux cursor through any newly arrived
// bytes. Called under the state mutex on every receive and once when the
// session is armed, which keeps marker routing immune to chunk-boundary
// coalescing.
func (d *Driver) pumpSessionLocked() {
	s := d.session
	if s == nil || !s.armed || !s.running {
		return
	}
	for {
		seg, ok := d.buf.readUntil(cursorDemux, markerSeq)
		if !ok {
			if n := d.buf.available(cursorDemux); n > 0 {
				s.route(d.buf.readExactly(cursorDemux, n))
			}
			return
		}
		s.route(seg[:len(seg)-len(markerSeq)])
		s.markers++
		if s.markers > 2 {
			s.running = false
			return
		}
	}
}

// readProtoBytes waits until n bytes are available at the protocol cursor and
// consumes them. A timeout consumes nothing.
func (d *Driver) readProtoBytes(n int, timeout time.Duration) (string, bool) {
	var out string
	ok := d.waitFor(timeout, func() bool {
		if d.buf.available(cursorProto) < n {
			return false
		}
		out = d.buf.readExactly(cursorProto, n)
		return true
	})
	return out, ok
}

// Run submits program text to the device and returns its captured output,
// with the decoded error available both on the response and via the
// last-error accessors. The console is forced to a known prompt first, raw
// mode is entered, and raw-paste flow control is used when the device
// supports it.
func (d *Driver) Run(req schema.RunRequest) (schema.RunResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return schema.RunResponse{}, schema.ErrEmptyCode
	}
	d.mu.Lock()
	installed := d.transmitFn != nil
	d.mu.Unlock()
	if !installed {
		return schema.RunResponse{}, schema.ErrNoTransmitter
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.cfg.RunTimeout
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()
	d.setBusy(true)
	defer d.setBusy(false)
	if req.Silent {
		d.setMuted(true)
		defer d.setMuted(false)
	}

	runID := newID()
	log := logx.WithRun(d.log, runID)
	log.Info("driver run start", "bytes", len(req.Code), "timeout", timeout)

	if !d.ensurePrompt(d.cfg.PromptTimeout) {
		log.Warn("driver run failed", "err", schema.ErrPromptTimeout)
		return schema.RunResponse{}, schema.ErrPromptTimeout
	}
	if !d.enterRawMode(d.cfg.PromptTimeout) {
		log.Warn("driver run failed", "reason", "raw mode entry", "err", schema.ErrPromptTimeout)
		return schema.RunResponse{}, schema.ErrPromptTimeout
	}

	window, err := d.negotiateRawPaste(log)
	if err != nil {
		return schema.RunResponse{}, err
	}

	session := &execSession{id: runID, running: true}
	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	sendErr := error(nil)
	if window > 0 {
		sendErr = d.sendWindowed(req.Code, window, log)
	} else {
		sendErr = d.transmit(req.Code)
	}
	if sendErr == nil {
		// Finalization: the completion marker ends the payload on both paths.
		sendErr = d.transmit(markerSeq)
	}
	if sendErr != nil {
		d.teardownSession()
		log.Warn("driver run failed", "reason", "send", "err", sendErr)
		return schema.RunResponse{}, sendErr
	}

	d.mu.Lock()
	d.buf.movePointer(cursorDemux, d.buf.pos(cursorProto))
	session.armed = true
	d.pumpSessionLocked()
	d.mu.Unlock()

	if !d.waitFor(timeout, func() bool { return !session.running }) {
		_ = d.transmit(ctrlInterrupt)
		d.mu.Lock()
		markers := session.markers
		d.mu.Unlock()
		d.teardownSession()
		log.Warn("driver run timed out", "timeout", timeout, "markers", markers)
		return schema.RunResponse{}, schema.ErrRunTimeout
	}

	d.mu.Lock()
	output := session.output.String()
	errText := session.errText.String()
	d.mu.Unlock()
	d.teardownSession()

	if !d.exitRawMode(d.cfg.PromptTimeout) {
		// Mode is left as last observed; the next call re-synchronizes.
		log.Warn("driver run left raw mode unresolved")
	}

	decoded := decodeExecError(errText, schema.DeviceLineEnding)
	rendered := d.renderLines(output)
	d.mu.Lock()
	d.lastOutput = rendered
	d.lastErr = decoded
	d.lastErrText = errText
	d.mu.Unlock()

	log.Info("driver run done", "output_bytes", len(output), "device_error", decoded != nil, "window", window)
	return schema.RunResponse{Output: rendered, ExecError: decoded, Window: window}, nil
}

// negotiateRawPaste performs the raw-paste enable handshake from raw mode.
// The returned window size is zero when the device declined or did not
// understand the handshake, selecting the plain raw submission path.
func (d *Driver) negotiateRawPaste(log pslog.Logger) (int, error) {
	if err := d.transmit(rawPasteEnable); err != nil {
		return 0, err
	}
	resp, ok := d.readProtoBytes(2, d.cfg.HandshakeTimeout)
	if !ok {
		log.Debug("driver raw-paste handshake timed out; using raw submission")
		return 0, nil
	}
	switch resp {
	case rawPasteSupported:
		rest, ok := d.readProtoBytes(3, d.cfg.HandshakeTimeout)
		if !ok {
			return 0, fmt.Errorf("raw-paste window size: %w", schema.ErrRunTimeout)
		}
		// Two-byte little-endian window size; the third byte is padding.
		window := int(rest[0]) | int(rest[1])<<8
		d.mu.Lock()
		d.setModeLocked(schema.ModeRawPaste)
		d.mu.Unlock()
		log.Debug("driver raw-paste negotiated", "window", window)
		return window, nil
	case rawPasteUnsupported:
		log.Debug("driver raw-paste unsupported; using raw submission")
		return 0, nil
	default:
		// The device echoed something else entirely, likely the start of the
		// raw banner: it does not speak raw-paste at all.
		log.Debug("driver raw-paste not understood; using raw submission", "resp", fmt.Sprintf("%q", resp))
		return 0, nil
	}
}

// sendWindowed transmits code in window-sized slices, blocking for a
// flow-control instruction byte whenever the window is exhausted. An abort
// stops the send immediately; finalization still follows.
func (d *Driver) sendWindowed(code string, window int, log pslog.Logger) error {
	remaining := window
	text := code
	for len(text) > 0 {
		if remaining == 0 {
			instr, ok := d.readProtoBytes(1, d.cfg.HandshakeTimeout)
			if !ok {
				return fmt.Errorf("flow-control byte: %w", schema.ErrRunTimeout)
			}
			switch instr {
			case flowRefill:
				remaining = window
			case flowAbort:
				log.Warn("driver raw-paste aborted by device", "unsent", len(text))
				return nil
			default:
				log.Warn("driver raw-paste unknown instruction; treating as abort", "instr", fmt.Sprintf("%q", instr))
				return nil
			}
			continue
		}
		n := remaining
		if n > len(text) {
			n = len(text)
		}
		if err := d.transmit(text[:n]); err != nil {
			return err
		}
		text = text[n:]
		remaining -= n
	}
	return nil
}

// teardownSession resets the per-run state and advances the protocol cursor
// past everything the demultiplexer consumed.
func (d *Driver) teardownSession() {
	d.mu.Lock()
	d.buf.movePointer(cursorProto, d.buf.pos(cursorDemux))
	d.session = nil
	d.mu.Unlock()
}

// renderLines re-emits captured device text using the configured terminator.
func (d *Driver) renderLines(text string) string {
	d.mu.Lock()
	ending := string(d.cfg.LineEnding)
	d.mu.Unlock()
	if ending == schema.DeviceLineEnding {
		return text
	}
	return strings.ReplaceAll(text, schema.DeviceLineEnding, ending)
}
