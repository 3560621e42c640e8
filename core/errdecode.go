package core

import (
	"regexp"
	"strconv"
	"strings"

	"pkt.systems/replink/schema"
)

var (
	tracebackFilePattern = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
	tracebackTypePattern = regexp.MustCompile(`^(\w+): ?(.*)$`)
	errnoPattern         = regexp.MustCompile(`\[Errno (\d+)\] ?`)
)

// decodeExecError parses captured device error text into a structured record.
// It reads the conventional three-line traceback: header, one frame line, and
// the exception line. Deeper frames are not parsed; Raw keeps the full text.
// No error text decodes to nil.
func decodeExecError(raw, lineEnding string) *schema.ExecError {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	decoded := &schema.ExecError{Raw: raw}
	lines := strings.Split(raw, lineEnding)
	if len(lines) > 1 {
		if m := tracebackFilePattern.FindStringSubmatch(lines[1]); m != nil {
			decoded.File = m[1]
			if n, err := strconv.Atoi(m[2]); err == nil {
				decoded.Line = n
			}
		}
	}
	if len(lines) > 2 {
		if m := tracebackTypePattern.FindStringSubmatch(lines[2]); m != nil {
			decoded.Type = m[1]
			decoded.Message = m[2]
			if decoded.Type == "OSError" {
				if em := errnoPattern.FindStringSubmatch(decoded.Message); em != nil {
					if n, err := strconv.Atoi(em[1]); err == nil {
						decoded.Errno = n
					}
					decoded.Message = strings.TrimSpace(errnoPattern.ReplaceAllString(decoded.Message, ""))
				}
			}
		}
	}
	return decoded
}
