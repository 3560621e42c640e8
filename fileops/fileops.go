// Package fileops drives the device filesystem through silent code
// submissions: every operation is a small program executed on the board,
// with its printed output parsed back into Go values.
package fileops

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/replink/schema"
)

// chunkSize is the number of raw bytes hex-encoded per transfer line. Small
// enough to stay inside one flow-control window on constrained boards.
const chunkSize = 64

// dirTypeFlag is the st_mode bit the device sets for directories.
const dirTypeFlag = 0x4000

// Runner executes program text on the device. Satisfied by the console
// driver.
type Runner interface {
	Run(req schema.RunRequest) (schema.RunResponse, error)
}

// Service performs filesystem operations against an attached device.
type Service struct {
	runner Runner
	log    pslog.Logger

	mu       sync.Mutex
	readOnly bool
}

// New returns a filesystem service backed by the given runner.
func New(runner Runner, logger pslog.Logger) *Service {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Service{runner: runner, log: logger}
}

// ReadOnly reports whether a previous write hit the device EROFS condition.
// The latch makes repeated writes fail fast instead of round-tripping to a
// filesystem that cannot change.
func (s *Service) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// ClearReadOnly resets the latch, e.g. after the device was remounted rw.
func (s *Service) ClearReadOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = false
}

// List returns the entries of a device directory.
func (s *Service) List(path string) ([]schema.FileInfo, error) {
	if path == "" {
		path = "/"
	}
	code := fmt.Sprintf(
		"import os\nfor _e in os.ilistdir(%s):\n    print(_e[0], _e[1], _e[3] if len(_e) > 3 else 0, sep='\\t')\n",
		pyString(path),
	)
	out, err := s.run(path, code)
	if err != nil {
		return nil, err
	}
	var entries []schema.FileInfo
	for _, line := range outputLines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected listing line %q", line)
		}
		mode, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("unexpected listing mode %q", fields[1])
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected listing size %q", fields[2])
		}
		entries = append(entries, schema.FileInfo{
			Name: fields[0],
			Dir:  mode&dirTypeFlag != 0,
			Size: size,
		})
	}
	return entries, nil
}

// Stat returns info for a single device path.
func (s *Service) Stat(path string) (schema.FileInfo, error) {
	code := fmt.Sprintf(
		"import os\n_s = os.stat(%s)\nprint(_s[0], _s[6], sep='\\t')\n",
		pyString(path),
	)
	out, err := s.run(path, code)
	if err != nil {
		return schema.FileInfo{}, err
	}
	lines := outputLines(out)
	if len(lines) != 1 {
		return schema.FileInfo{}, fmt.Errorf("unexpected stat output %q", out)
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) != 2 {
		return schema.FileInfo{}, fmt.Errorf("unexpected stat output %q", out)
	}
	mode, err := strconv.Atoi(fields[0])
	if err != nil {
		return schema.FileInfo{}, fmt.Errorf("unexpected stat mode %q", fields[0])
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return schema.FileInfo{}, fmt.Errorf("unexpected stat size %q", fields[1])
	}
	return schema.FileInfo{
		Name: baseName(path),
		Dir:  mode&dirTypeFlag != 0,
		Size: size,
	}, nil
}

// ReadFile fetches a device file's contents. The transfer is hex-encoded on
// the wire so binary content survives the console.
func (s *Service) ReadFile(path string) ([]byte, error) {
	code := fmt.Sprintf(
		"import ubinascii\n_f = open(%s, 'rb')\nwhile True:\n    _b = _f.read(%d)\n    if not _b:\n        break\n    print(ubinascii.hexlify(_b).decode())\n_f.close()\n",
		pyString(path), chunkSize,
	)
	out, err := s.run(path, code)
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, line := range outputLines(out) {
		chunk, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("unexpected transfer line %q", line)
		}
		data = append(data, chunk...)
	}
	return data, nil
}

// WriteFile stores data at a device path, replacing any existing file.
func (s *Service) WriteFile(path string, data []byte) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("import ubinascii\n")
	fmt.Fprintf(&b, "_f = open(%s, 'wb')\n", pyString(path))
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&b, "_f.write(ubinascii.unhexlify('%s'))\n", hex.EncodeToString(data[off:end]))
	}
	b.WriteString("_f.close()\n")
	if _, err := s.run(path, b.String()); err != nil {
		return err
	}
	s.log.Debug("device file written", "path", path, "bytes", len(data))
	return nil
}

// Remove deletes a device file or empty directory.
func (s *Service) Remove(path string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	code := fmt.Sprintf(
		"import os\ntry:\n    os.remove(%[1]s)\nexcept OSError as _e:\n    if _e.args[0] == 21:\n        os.rmdir(%[1]s)\n    else:\n        raise\n",
		pyString(path),
	)
	_, err := s.run(path, code)
	return err
}

// Mkdir creates a device directory.
func (s *Service) Mkdir(path string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	code := fmt.Sprintf("import os\nos.mkdir(%s)\n", pyString(path))
	_, err := s.run(path, code)
	return err
}

func (s *Service) checkWritable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return schema.ErrReadOnlyFilesystem
	}
	return nil
}

// run executes code silently and maps device tracebacks to Go errors.
func (s *Service) run(path, code string) (string, error) {
	resp, err := s.runner.Run(schema.RunRequest{Code: code, Silent: true})
	if err != nil {
		return "", err
	}
	if resp.ExecError != nil {
		return "", s.mapExecError(path, resp.ExecError)
	}
	return resp.Output, nil
}

func (s *Service) mapExecError(path string, execErr *schema.ExecError) error {
	if execErr.ReadOnlyFilesystem() {
		s.mu.Lock()
		s.readOnly = true
		s.mu.Unlock()
		s.log.Warn("device filesystem is read-only", "path", path)
		return fmt.Errorf("%s: %w", path, schema.ErrReadOnlyFilesystem)
	}
	if execErr.Type == "OSError" {
		switch execErr.Errno {
		case 2:
			return fmt.Errorf("%s: %w", path, schema.ErrFileNotFound)
		case 17:
			return fmt.Errorf("%s: %w", path, schema.ErrFileExists)
		}
	}
	return execErr
}

// outputLines splits captured output into non-empty lines regardless of the
// configured terminator.
func outputLines(out string) []string {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// pyString renders path as a Python string literal. Go's quoting rules are a
// compatible subset for the byte escapes we emit.
func pyString(path string) string {
	return strconv.Quote(path)
}

func baseName(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
