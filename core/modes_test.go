package core

import (
	"testing"

	"pkt.systems/replink/schema"
)

func TestAnchorTrackerLatestAnchorWins(t *testing.T) {
	cases := []struct {
		name   string
		stream string
		want   schema.Mode
	}{
		{"raw then prompt", "raw REPL; CTRL-B to exit\r\n>\r\nbye\r\n>>> ", schema.ModeNormal},
		{"prompt then raw", ">>> \x01raw REPL; CTRL-B to exit\r\n>", schema.ModeRaw},
		{"pre-prompt last", ">>> \r\nPress any key to enter the REPL\r\n", schema.ModePrePrompt},
		{"nothing", "some program output without anchors", schema.ModeUnknown},
		{"empty", "", schema.ModeUnknown},
	}
	for _, tc := range cases {
		tracker := &anchorTracker{mode: schema.ModeUnknown}
		tracker.observe(tc.stream, len(tc.stream))
		if tracker.mode != tc.want {
			t.Fatalf("case %q: expected %q, got %q", tc.name, tc.want, tracker.mode)
		}
	}
}

func TestAnchorTrackerMatchesAcrossChunks(t *testing.T) {
	stream := "boot noise\r\nraw REPL; CTRL-B to exit\r\n>"
	for cut := 0; cut <= len(stream); cut++ {
		tracker := &anchorTracker{mode: schema.ModeUnknown}
		tracker.observe(stream[:cut], cut)
		tracker.observe(stream[cut:], len(stream))
		if tracker.mode != schema.ModeRaw {
			t.Fatalf("split at %d: expected raw, got %q", cut, tracker.mode)
		}
	}
}

func TestAnchorTrackerOffsetOrderingForAnyInterleaving(t *testing.T) {
	// The anchor whose match index is numerically larger decides the mode,
	// regardless of which order the chunks delivered it.
	tracker := &anchorTracker{mode: schema.ModeUnknown}
	tracker.observe(">>> ", 4)
	first := tracker.offset
	tracker.observe("raw REPL; CTRL-B to exit", 4+24)
	if tracker.offset <= first {
		t.Fatalf("expected offset to advance, got %d then %d", first, tracker.offset)
	}
	if tracker.mode != schema.ModeRaw {
		t.Fatalf("expected raw after later anchor, got %q", tracker.mode)
	}
	// An earlier-offset anchor re-observed must not win.
	tracker.observe("", 4+24)
	if tracker.mode != schema.ModeRaw {
		t.Fatalf("mode must be sticky, got %q", tracker.mode)
	}
}

func TestAnchorTrackerSurvivesReset(t *testing.T) {
	tracker := &anchorTracker{mode: schema.ModeUnknown}
	tracker.observe(">>> ", 4)
	tracker.reset()
	if tracker.mode != schema.ModeUnknown || tracker.offset != 0 || tracker.tail != "" {
		t.Fatalf("expected pristine tracker after reset, got %+v", tracker)
	}
}
