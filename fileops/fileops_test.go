package fileops

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"pkt.systems/replink/schema"
)

// fakeRunner scripts responses keyed by substrings of the submitted code.
type fakeRunner struct {
	t        *testing.T
	requests []schema.RunRequest
	respond  func(req schema.RunRequest) (schema.RunResponse, error)
}

func (f *fakeRunner) Run(req schema.RunRequest) (schema.RunResponse, error) {
	f.requests = append(f.requests, req)
	if !req.Silent {
		f.t.Errorf("filesystem run was not silent")
	}
	return f.respond(req)
}

func osError(errno int, message string) *schema.ExecError {
	return &schema.ExecError{
		Type:    "OSError",
		Message: message,
		Errno:   errno,
		Raw:     "Traceback (most recent call last):\r\nOSError: " + message + "\r\n",
	}
}

func TestListParsesEntries(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		if !strings.Contains(req.Code, "os.ilistdir(\"/\")") {
			t.Fatalf("unexpected code: %q", req.Code)
		}
		return schema.RunResponse{Output: "main.py\t32768\t120\nlib\t16384\t0\n"}, nil
	}}
	svc := New(runner, nil)

	entries, err := svc.List("/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []schema.FileInfo{
		{Name: "main.py", Dir: false, Size: 120},
		{Name: "lib", Dir: true, Size: 0},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, entry := range entries {
		if entry != want[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, entry, want[i])
		}
	}
}

func TestListDefaultsToRoot(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		if !strings.Contains(req.Code, "ilistdir(\"/\")") {
			t.Fatalf("expected root listing, got %q", req.Code)
		}
		return schema.RunResponse{}, nil
	}}
	if _, err := New(runner, nil).List(""); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestStatReturnsInfo(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		return schema.RunResponse{Output: "32768\t512\r\n"}, nil
	}}
	info, err := New(runner, nil).Stat("/lib/util.py")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Name != "util.py" || info.Dir || info.Size != 512 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestStatMissingFile(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		return schema.RunResponse{ExecError: osError(2, "[Errno 2] ENOENT")}, nil
	}}
	_, err := New(runner, nil).Stat("/nope.py")
	if !errors.Is(err, schema.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestReadFileDecodesHexChunks(t *testing.T) {
	payload := bytes.Repeat([]byte{0x00, 0x01, 0xfe, 0xff}, 40) // 160 bytes, 3 chunks
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		var out strings.Builder
		for off := 0; off < len(payload); off += chunkSize {
			end := off + chunkSize
			if end > len(payload) {
				end = len(payload)
			}
			out.WriteString(hex.EncodeToString(payload[off:end]))
			out.WriteString("\n")
		}
		return schema.RunResponse{Output: out.String()}, nil
	}}
	data, err := New(runner, nil).ReadFile("/data.bin")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("payload mismatch: got %d bytes", len(data))
	}
}

func TestWriteFileEncodesChunks(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, chunkSize+10)
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		return schema.RunResponse{}, nil
	}}
	svc := New(runner, nil)
	if err := svc.WriteFile("/data.bin", payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	code := runner.requests[0].Code
	if !strings.Contains(code, "open(\"/data.bin\", 'wb')") {
		t.Fatalf("expected open for write, got %q", code)
	}
	first := hex.EncodeToString(payload[:chunkSize])
	rest := hex.EncodeToString(payload[chunkSize:])
	if !strings.Contains(code, first) || !strings.Contains(code, rest) {
		t.Fatalf("expected both hex chunks in %q", code)
	}
	if !strings.Contains(code, "_f.close()") {
		t.Fatalf("expected close in %q", code)
	}
}

func TestWriteFileLatchesReadOnly(t *testing.T) {
	calls := 0
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		calls++
		return schema.RunResponse{ExecError: osError(schema.ErrnoReadOnlyFilesystem, "[Errno 30] EROFS")}, nil
	}}
	svc := New(runner, nil)

	err := svc.WriteFile("/main.py", []byte("print(1)"))
	if !errors.Is(err, schema.ErrReadOnlyFilesystem) {
		t.Fatalf("expected ErrReadOnlyFilesystem, got %v", err)
	}
	if !svc.ReadOnly() {
		t.Fatalf("expected read-only latch set")
	}

	// Latched writes fail fast without another device round trip.
	if err := svc.Remove("/main.py"); !errors.Is(err, schema.ErrReadOnlyFilesystem) {
		t.Fatalf("expected latched error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one device call, got %d", calls)
	}

	svc.ClearReadOnly()
	if svc.ReadOnly() {
		t.Fatalf("expected latch cleared")
	}
}

func TestMkdirExisting(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		return schema.RunResponse{ExecError: osError(17, "[Errno 17] EEXIST")}, nil
	}}
	if err := New(runner, nil).Mkdir("/lib"); !errors.Is(err, schema.ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
}

func TestRemoveFallsBackToRmdir(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		if !strings.Contains(req.Code, "os.rmdir(\"/lib\")") {
			t.Fatalf("expected rmdir fallback in %q", req.Code)
		}
		return schema.RunResponse{}, nil
	}}
	if err := New(runner, nil).Remove("/lib"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestPyStringEscapesQuotes(t *testing.T) {
	got := pyString(`/weird "name".py`)
	if got != `"/weird \"name\".py"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
}

func TestUnmappedExecErrorPassesThrough(t *testing.T) {
	runner := &fakeRunner{t: t, respond: func(req schema.RunRequest) (schema.RunResponse, error) {
		return schema.RunResponse{ExecError: &schema.ExecError{Type: "ValueError", Message: "bad"}}, nil
	}}
	_, err := New(runner, nil).ReadFile("/x")
	var execErr *schema.ExecError
	if !errors.As(err, &execErr) || execErr.Type != "ValueError" {
		t.Fatalf("expected ExecError passthrough, got %v", err)
	}
}
