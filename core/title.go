package core

import "regexp"

// titleState accumulates the device window title between title-start and
// title-end control sequences. It is mutated only by the token processor.
type titleState struct {
	inTitle bool
	title   string
}

var (
	titleVersionPattern = regexp.MustCompile(`MicroPython (v[0-9][^\s;]*)`)
	titleIPPattern      = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{1,3}){3})\b`)
)

// extractVersion pulls the firmware version out of a title string. Empty when
// the title carries none.
func extractVersion(title string) string {
	if m := titleVersionPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// extractIPAddress pulls the first dotted quad out of a title string.
func extractIPAddress(title string) string {
	if m := titleIPPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}
