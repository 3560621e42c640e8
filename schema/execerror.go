package schema

import (
	"fmt"
	"strings"
)

// ErrnoReadOnlyFilesystem is the device errno for EROFS.
const ErrnoReadOnlyFilesystem = 30

// ExecError is a device-reported program error decoded from traceback text.
// Fields are zero-valued when the corresponding traceback line was absent or
// did not match; Raw always carries the captured error text verbatim.
type ExecError struct {
	File    string
	Line    int
	Type    string
	Message string
	Errno   int
	Raw     string
}

// Error renders a single-line summary of the device error.
func (e *ExecError) Error() string {
	if e == nil {
		return ""
	}
	if e.Type == "" {
		return strings.TrimSpace(e.Raw)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s (%s:%d)", e.Type, e.Message, e.File, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ReadOnlyFilesystem reports whether the error is the device EROFS condition.
func (e *ExecError) ReadOnlyFilesystem() bool {
	return e != nil && e.Type == "OSError" && e.Errno == ErrnoReadOnlyFilesystem
}
