package schema

import "errors"

var (
	// ErrNoTransmitter indicates a transmit was attempted before a transmit
	// function was installed.
	ErrNoTransmitter = errors.New("no transmitter installed")
	// ErrInvalidLineEnding indicates an unsupported output line terminator.
	ErrInvalidLineEnding = errors.New("invalid line ending")
	// ErrEmptyCode indicates an empty submission.
	ErrEmptyCode = errors.New("empty code")
	// ErrRunTimeout indicates a submission did not complete within its budget.
	ErrRunTimeout = errors.New("run timed out")
	// ErrPromptTimeout indicates the device could not be brought to an idle prompt.
	ErrPromptTimeout = errors.New("prompt not reached")
	// ErrBusy indicates a submission is in flight and console input is refused.
	ErrBusy = errors.New("console busy")
	// ErrNoDevice indicates neither a serial port nor a TCP address is configured.
	ErrNoDevice = errors.New("no device configured")
	// ErrReadOnlyFilesystem indicates the device filesystem rejects writes.
	ErrReadOnlyFilesystem = errors.New("read-only filesystem")
	// ErrFileNotFound indicates a missing device path.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileExists indicates the device path already exists.
	ErrFileExists = errors.New("file already exists")
)
