package schema

import "time"

// RunRequest submits program text for execution on the device.
type RunRequest struct {
	Code    string
	Timeout time.Duration // zero uses the driver default
	Silent  bool          // suppress terminal sink callbacks for this run
}

// RunResponse carries the captured result of a submission.
type RunResponse struct {
	Output    string
	ExecError *ExecError // nil when the program raised nothing
	Window    int        // negotiated flow-control window; zero on raw fallback
}
