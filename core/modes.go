package core

import "pkt.systems/replink/schema"

// Control bytes transmitted to the device.
const (
	ctrlEnterRaw  = "\x01" // Ctrl-A: enter raw mode
	ctrlExitRaw   = "\x02" // Ctrl-B: leave raw mode
	ctrlInterrupt = "\x03" // Ctrl-C: cancel the running program
	ctrlSoftReset = "\x04" // Ctrl-D at the idle prompt: soft restart
)

// Anchor patterns. Each uniquely identifies a device banner or prompt; the
// latest occurrence in the stream decides the current mode.
const (
	rawBanner       = "raw REPL; CTRL-B to exit"
	normalPrompt    = ">>> "
	rawPrompt       = ">"
	prePromptBanner = "Press any key to enter the REPL"
)

// rawBannerTail is what the device emits entering raw mode; consuming through
// it keeps handshake reads free of banner bytes.
const rawBannerTail = rawBanner + "\r\n" + rawPrompt

var modeAnchors = []struct {
	mode schema.Mode
	text string
}{
	{schema.ModeRaw, rawBanner},
	{schema.ModeNormal, normalPrompt},
	{schema.ModePrePrompt, prePromptBanner},
}

// anchorTracker records the latest anchor pattern seen in the stream. It is
// fed incrementally as data arrives, carrying an overlap tail so anchors split
// across chunks still match; compaction therefore never erases mode history.
// Semantics match a whole-buffer scan for the latest-occurring anchor.
type anchorTracker struct {
	mode   schema.Mode // ModeUnknown until the first anchor appears
	offset int         // stream offset just past the latest match
	tail   string
}

func maxAnchorLen() int {
	max := 0
	for _, anchor := range modeAnchors {
		if len(anchor.text) > max {
			max = len(anchor.text)
		}
	}
	return max
}

// observe scans a newly appended chunk. streamEnd is the total stream size
// after the append (compaction included).
func (a *anchorTracker) observe(chunk string, streamEnd int) {
	if chunk == "" {
		return
	}
	window := a.tail + chunk
	windowStart := streamEnd - len(window)
	for _, anchor := range modeAnchors {
		if idx := lastIndex(window, anchor.text); idx >= 0 {
			end := windowStart + idx + len(anchor.text)
			if end > a.offset {
				a.mode = anchor.mode
				a.offset = end
			}
		}
	}
	keep := maxAnchorLen() - 1
	if keep > len(window) {
		keep = len(window)
	}
	a.tail = window[len(window)-keep:]
}

func (a *anchorTracker) reset() {
	a.mode = schema.ModeUnknown
	a.offset = 0
	a.tail = ""
}

func lastIndex(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
