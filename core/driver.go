package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/replink/schema"
)

// compactRetainTail is how much recent stream text survives idle compaction,
// enough to keep prompt detection working on the retained remainder.
const compactRetainTail = 4096

// Driver turns the device's noisy half-duplex byte stream into a reliable
// remote-code-execution primitive. One mutex guards all driver state and is
// never held across an I/O wait; Run-class operations are serialized by a
// dedicated operation lock because the protocol has no request/response
// correlation.
type Driver struct {
	cfg schema.DriverConfig
	log pslog.Logger

	opMu sync.Mutex // serializes Run-class operations

	mu         sync.Mutex
	transmitFn TransmitFunc
	sink       TerminalSink
	buf        *buffer
	tk         tokenizer
	anchors    anchorTracker
	mode       schema.Mode
	modeOffset int // stream offset at which mode was last decided
	title      titleState
	muted      bool
	busy       bool // a Run-class operation holds opMu
	session    *execSession

	lastOutput  string
	lastErr     *schema.ExecError
	lastErrText string
}

// New constructs a Driver. The transmit function may be installed later via
// SetTransmitter; transmitting before one is installed fails fast.
func New(cfg schema.DriverConfig, deps Deps) (*Driver, error) {
	normalized, err := schema.NormalizeDriverConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Driver{
		cfg:        normalized,
		log:        logger,
		transmitFn: deps.Transmit,
		sink:       deps.Sink,
		buf:        newBuffer(schema.DeviceLineEnding),
		mode:       schema.ModeUnknown,
	}, nil
}

// SetTransmitter installs or replaces the transmit function.
func (d *Driver) SetTransmitter(fn TransmitFunc) {
	d.mu.Lock()
	d.transmitFn = fn
	d.mu.Unlock()
}

// SetLineEnding selects the terminator used when re-emitting captured output
// and error text. Only the two canonical terminators are accepted.
func (d *Driver) SetLineEnding(kind schema.LineEnding) error {
	switch kind {
	case schema.LineEndingLF, schema.LineEndingCRLF:
	default:
		return schema.ErrInvalidLineEnding
	}
	d.mu.Lock()
	d.cfg.LineEnding = kind
	d.mu.Unlock()
	return nil
}

// transmit sends bytes to the device without holding the state mutex across
// the write.
func (d *Driver) transmit(data string) error {
	d.mu.Lock()
	fn := d.transmitFn
	d.mu.Unlock()
	if fn == nil {
		return schema.ErrNoTransmitter
	}
	if d.cfg.TraceWire {
		d.log.Trace("wire tx", "bytes", len(data))
	}
	return fn([]byte(data))
}

// sinkCall is a deferred sink callback collected under the mutex and invoked
// after unlock.
type sinkCall struct {
	output []byte
	title  string
	append bool
	isT    bool
}

// Receive is the transport's byte-arrival entry point. It tokenizes the
// chunk, appends stream text to the cursor buffer, tracks anchors and title
// state, pumps an armed demux session, and forwards tokens to the terminal
// sink unless muted.
func (d *Driver) Receive(data []byte) {
	if len(data) == 0 {
		return
	}
	if d.cfg.TraceWire {
		d.log.Trace("wire rx", "bytes", len(data))
	}
	d.mu.Lock()
	var calls []sinkCall
	emit := d.sink != nil && !d.muted
	for _, tok := range d.tk.split(string(data)) {
		switch tok.kind {
		case tokenTitleStart:
			d.title.inTitle = true
			d.title.title = ""
			if emit {
				calls = append(calls, sinkCall{isT: true, title: "", append: false})
			}
		case tokenTitleEnd:
			if d.title.inTitle {
				d.title.inTitle = false
				continue
			}
			// A bell outside a title is plain stream data.
			d.appendStreamLocked(tok.text)
			if emit {
				calls = append(calls, sinkCall{output: []byte(tok.text)})
			}
		case tokenMarker:
			d.appendStreamLocked(tok.text)
			if emit {
				calls = append(calls, sinkCall{output: []byte(tok.text)})
			}
		default:
			if d.title.inTitle {
				d.title.title += tok.text
				if emit {
					calls = append(calls, sinkCall{isT: true, title: tok.text, append: true})
				}
				continue
			}
			d.appendStreamLocked(tok.text)
			if emit {
				calls = append(calls, sinkCall{output: []byte(tok.text)})
			}
		}
	}
	d.pumpSessionLocked()
	d.maybeCompactLocked()
	sink := d.sink
	d.mu.Unlock()

	for _, call := range calls {
		if call.isT {
			sink.OnTitleChanged(call.title, call.append)
		} else {
			sink.OnOutputForDisplay(call.output)
		}
	}
}

func (d *Driver) appendStreamLocked(text string) {
	d.buf.append(text)
	d.anchors.observe(text, d.buf.streamSize())
	if d.anchors.offset > d.modeOffset {
		d.mode = d.anchors.mode
		d.modeOffset = d.anchors.offset
	}
}

// setModeLocked records a mode decided by protocol handshake rather than by
// an anchor; a later anchor in the stream overrides it.
func (d *Driver) setModeLocked(mode schema.Mode) {
	d.mode = mode
	d.modeOffset = d.buf.streamSize()
}

func (d *Driver) maybeCompactLocked() {
	if d.busy || d.session != nil {
		return
	}
	if d.buf.size() <= d.cfg.CompactThreshold {
		return
	}
	target := d.buf.size() - compactRetainTail
	if target <= 0 {
		return
	}
	d.buf.movePointer(cursorProto, target)
	d.buf.movePointer(cursorDemux, target)
	if removed := d.buf.compact(); removed > 0 {
		d.log.Debug("driver buffer compacted", "removed", removed, "size", d.buf.size())
	}
}

// Mode returns the current console mode as last observed.
func (d *Driver) Mode() schema.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Title returns the most recently accumulated window title.
func (d *Driver) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title.title
}

// Version returns the firmware version extracted from the title, empty when
// the title carries none.
func (d *Driver) Version() string {
	return extractVersion(d.Title())
}

// IPAddress returns the device IP address extracted from the title, empty
// when the title carries none.
func (d *Driver) IPAddress() string {
	return extractIPAddress(d.Title())
}

// GetCodeOutput returns the captured output of the most recent submission.
func (d *Driver) GetCodeOutput() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastOutput
}

// LastExecError returns the decoded error of the most recent submission, nil
// when the program raised nothing.
func (d *Driver) LastExecError() *schema.ExecError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// LastErrorText returns the raw captured error text of the most recent
// submission.
func (d *Driver) LastErrorText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErrText
}

// SendInput forwards interactive keystrokes to the device. Input is refused
// while a submission is in flight because interleaved writes would corrupt
// the marker-counting demultiplexer.
func (d *Driver) SendInput(data []byte) error {
	if !d.opMu.TryLock() {
		return schema.ErrBusy
	}
	defer d.opMu.Unlock()
	return d.transmit(string(data))
}

// Interrupt transmits the device interrupt byte. This is the only way to
// cancel a running program.
func (d *Driver) Interrupt() error {
	return d.transmit(ctrlInterrupt)
}

// promptSeenLocked reports whether the most recent line of the unconsumed
// stream is exactly the idle prompt.
func (d *Driver) promptSeenLocked() bool {
	return d.buf.peekLastLine(cursorProto) == normalPrompt
}

// WaitForPrompt waits for the device to present its idle prompt. A timeout
// returns false, never an error; the next call re-synchronizes from whatever
// state the stream shows then.
func (d *Driver) WaitForPrompt(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = d.cfg.PromptTimeout
	}
	ok := d.waitFor(timeout, d.promptSeenLocked)
	if !ok {
		d.log.Warn("driver prompt wait timed out", "timeout", timeout, "mode", d.Mode())
	}
	return ok
}

// ensurePrompt forces the console to an unambiguous Normal idle prompt:
// interrupt repeatedly until the prompt is the most recent line, exit raw
// mode if the raw banner was the latest anchor, and escalate to a full
// restart when the device state cannot be resolved.
func (d *Driver) ensurePrompt(timeout time.Duration) bool {
	d.mu.Lock()
	mode := d.mode
	atPrompt := d.promptSeenLocked()
	d.mu.Unlock()

	if atPrompt && mode == schema.ModeNormal {
		return true
	}

	switch mode {
	case schema.ModeUnknown:
		// No anchor has ever appeared: assume a program is running and
		// restart rather than guess.
		return d.restart()
	case schema.ModePrePrompt:
		if err := d.transmit("\r"); err != nil {
			d.log.Warn("driver pre-prompt wake failed", "err", err)
			return false
		}
	}

	attempts := d.cfg.InterruptAttempts
	slice := timeout / time.Duration(attempts)
	if slice < d.cfg.PollInterval {
		slice = d.cfg.PollInterval
	}
	for i := 0; i < attempts; i++ {
		if err := d.transmit(ctrlInterrupt); err != nil {
			d.log.Warn("driver interrupt failed", "err", err)
			return false
		}
		if d.waitFor(slice, func() bool {
			return d.promptSeenLocked() || d.buf.peekLastLine(cursorProto) == rawPrompt
		}) {
			break
		}
	}

	d.mu.Lock()
	mode = d.mode
	d.mu.Unlock()
	if mode == schema.ModeRaw || mode == schema.ModeRawPaste {
		if !d.exitRawMode(timeout) {
			return d.restart()
		}
	}

	if d.waitFor(slice, d.promptSeenLocked) {
		return true
	}
	return d.restart()
}

// enterRawMode transitions Normal -> Raw and consumes the raw banner on the
// protocol cursor so subsequent handshake reads see only handshake bytes.
func (d *Driver) enterRawMode(timeout time.Duration) bool {
	if err := d.transmit(ctrlEnterRaw); err != nil {
		d.log.Warn("driver raw mode entry failed", "err", err)
		return false
	}
	ok := d.waitFor(timeout, func() bool {
		_, found := d.buf.readUntil(cursorProto, rawBannerTail)
		return found
	})
	if !ok {
		d.log.Warn("driver raw mode entry timed out", "timeout", timeout)
		return false
	}
	return true
}

// exitRawMode transitions Raw -> Normal.
func (d *Driver) exitRawMode(timeout time.Duration) bool {
	if err := d.transmit(ctrlExitRaw); err != nil {
		d.log.Warn("driver raw mode exit failed", "err", err)
		return false
	}
	ok := d.waitFor(timeout, d.promptSeenLocked)
	if !ok {
		d.log.Warn("driver raw mode exit timed out", "timeout", timeout)
	}
	return ok
}

// restart issues the full restart sequence and re-synchronizes: cancel the
// running program, leave raw mode, soft-reset, then wait for the idle prompt.
func (d *Driver) restart() bool {
	d.log.Info("driver restart", "mode", d.Mode())
	d.mu.Lock()
	d.buf.movePointer(cursorProto, d.buf.size())
	d.mu.Unlock()
	for _, seq := range []string{ctrlInterrupt, ctrlExitRaw, ctrlSoftReset} {
		if err := d.transmit(seq); err != nil {
			d.log.Warn("driver restart transmit failed", "err", err)
			return false
		}
	}
	ok := d.waitFor(d.cfg.RestartTimeout, d.promptSeenLocked)
	if !ok {
		d.log.Warn("driver restart timed out", "timeout", d.cfg.RestartTimeout)
	}
	return ok
}

func (d *Driver) setBusy(busy bool) {
	d.mu.Lock()
	d.busy = busy
	d.mu.Unlock()
}

func (d *Driver) setMuted(muted bool) {
	d.mu.Lock()
	d.muted = muted
	d.mu.Unlock()
}
