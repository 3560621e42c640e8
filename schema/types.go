package schema

// Mode identifies the console protocol state of the attached device.
type Mode string

const (
	// ModeUnknown is the boot/ambiguous state before any anchor has been seen.
	ModeUnknown Mode = "unknown"
	// ModeNormal is the interactive echoing REPL at its idle prompt.
	ModeNormal Mode = "normal"
	// ModeRaw is the echo-suppressed programmatic submission mode.
	ModeRaw Mode = "raw"
	// ModeRawPaste is raw mode with windowed flow control negotiated.
	ModeRawPaste Mode = "raw-paste"
	// ModePrePrompt is the boot menu that waits for a key press before the REPL.
	ModePrePrompt Mode = "pre-prompt"
)

// LineEnding selects the terminator used when re-emitting captured lines.
type LineEnding string

const (
	// LineEndingLF re-emits captured lines terminated with "\n".
	LineEndingLF LineEnding = "\n"
	// LineEndingCRLF re-emits captured lines terminated with "\r\n".
	LineEndingCRLF LineEnding = "\r\n"
)

// DeviceLineEnding is the terminator the device itself emits between lines.
const DeviceLineEnding = "\r\n"

// FileInfo describes one entry on the device filesystem.
type FileInfo struct {
	Name string
	Dir  bool
	Size int64
}
