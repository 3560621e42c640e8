package core

import "strings"

// Control sequences recognized in the inbound stream.
const (
	titleStartSeq = "\x1b]0;"
	titleEndSeq   = "\x07"
	markerSeq     = "\x04"
)

// tokenKind discriminates stream tokens.
type tokenKind int

const (
	tokenData tokenKind = iota
	tokenTitleStart
	tokenTitleEnd
	tokenMarker
)

// token is one slice of the inbound stream: literal data or one of the
// recognized control sequences. text carries the bytes verbatim either way,
// so concatenating a token sequence reproduces the stream.
type token struct {
	kind tokenKind
	text string
}

var controlSeqs = []struct {
	kind tokenKind
	text string
}{
	{tokenTitleStart, titleStartSeq},
	{tokenTitleEnd, titleEndSeq},
	{tokenMarker, markerSeq},
}

// tokenizer splits arriving chunks into data and control tokens. A chunk tail
// matching a proper prefix of a control sequence is withheld and prepended to
// the next chunk; a sequence split across chunks is never emitted as data.
type tokenizer struct {
	carry string
}

// split tokenizes chunk together with any carried partial sequence.
func (t *tokenizer) split(chunk string) []token {
	input := t.carry + chunk
	t.carry = ""
	if input == "" {
		return nil
	}

	var out []token
	for len(input) > 0 {
		idx := -1
		kind := tokenData
		seqLen := 0
		for _, cs := range controlSeqs {
			i := strings.Index(input, cs.text)
			if i >= 0 && (idx < 0 || i < idx) {
				idx, kind, seqLen = i, cs.kind, len(cs.text)
			}
		}
		if idx < 0 {
			break
		}
		if idx > 0 {
			out = append(out, token{kind: tokenData, text: input[:idx]})
		}
		out = append(out, token{kind: kind, text: input[idx : idx+seqLen]})
		input = input[idx+seqLen:]
	}

	if tail := partialSeqTail(input); tail > 0 {
		t.carry = input[len(input)-tail:]
		input = input[:len(input)-tail]
	}
	if input != "" {
		out = append(out, token{kind: tokenData, text: input})
	}
	return out
}

// pending returns the withheld partial sequence, if any.
func (t *tokenizer) pending() string {
	return t.carry
}

// partialSeqTail returns the length of the longest suffix of s that is a
// proper prefix of a control sequence.
func partialSeqTail(s string) int {
	max := 0
	for _, cs := range controlSeqs {
		limit := len(cs.text) - 1
		if limit > len(s) {
			limit = len(s)
		}
		for n := limit; n > max; n-- {
			if s[len(s)-n:] == cs.text[:n] {
				max = n
				break
			}
		}
	}
	return max
}
