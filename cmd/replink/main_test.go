package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"run", "repl", "fs", "bridge", "ports", "config", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected subcommand %q", name)
		}
	}
}

func TestReadProgramPrefersExpr(t *testing.T) {
	cmd := newRunCmd()
	code, err := readProgram(cmd, nil, "print(1)")
	if err != nil {
		t.Fatalf("read program: %v", err)
	}
	if code != "print(1)" {
		t.Fatalf("unexpected code %q", code)
	}
	if _, err := readProgram(cmd, []string{"main.py"}, "print(1)"); err == nil {
		t.Fatalf("expected error for file plus --expr")
	}
	if _, err := readProgram(cmd, nil, ""); err == nil {
		t.Fatalf("expected error when nothing is given")
	}
}

func TestReadProgramFromStdin(t *testing.T) {
	cmd := newRunCmd()
	cmd.SetIn(bytes.NewBufferString("print('hi')\n"))
	code, err := readProgram(cmd, []string{"-"}, "")
	if err != nil {
		t.Fatalf("read program: %v", err)
	}
	if !strings.Contains(code, "print('hi')") {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestVersionCmdPrintsModule(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "pkt.systems/replink") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
