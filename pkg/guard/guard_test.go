package guard

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"18.12.1\n", "18.12.1"},
		{"v18.4.0", "18.4.0"},
		{"  v20 ", "20"},
		{"=16.0.0", "16.0.0"},
		{"", ""},
		{"   ", ""},
		{"v", ""},
		{"vv18", "v18"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMajor(t *testing.T) {
	tests := []struct{ in, want string }{
		{"18.12.1", "18"},
		{"20", "20"},
		{"", ""},
		{".1.2", ""},
		{"09.1", "09"},
	}
	for _, tt := range tests {
		if got := Major(tt.in); got != tt.want {
			t.Errorf("Major(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func runGuard(t *testing.T, pin *string, runtime string, runtimeErr error) (int, string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".node-version")
	if pin != nil {
		if err := os.WriteFile(path, []byte(*pin), 0o644); err != nil {
			t.Fatalf("write pin file: %v", err)
		}
	}

	var stdout, stderr bytes.Buffer
	called := false
	g := &Guard{
		PinFile: path,
		Runtime: func() (string, error) {
			called = true
			return runtime, runtimeErr
		},
		Stdout: &stdout,
		Stderr: &stderr,
	}
	code := g.Check()
	if pin == nil && called {
		t.Error("runtime should not be queried without a pin file")
	}
	return code, stdout.String(), stderr.String()
}

func ptr(s string) *string { return &s }

func TestCheckMatch(t *testing.T) {
	code, stdout, stderr := runGuard(t, ptr("18.12.1\n"), "v18.4.0", nil)
	if code != ExitOK {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "OK") || !strings.Contains(stdout, "major 18") {
		t.Errorf("stdout = %q", stdout)
	}
	if stderr != "" {
		t.Errorf("stderr = %q, want empty", stderr)
	}
}

func TestCheckMismatch(t *testing.T) {
	code, stdout, stderr := runGuard(t, ptr("20.0.0"), "v18.4.0", nil)
	if code != ExitMismatch {
		t.Fatalf("exit = %d, want 2", code)
	}
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) != 2 {
		t.Fatalf("want two-line diagnostic, got %q", stderr)
	}
	if !strings.Contains(lines[0], "18.4.0") || !strings.Contains(lines[0], "20.0.0") {
		t.Errorf("diagnostic should name both versions: %q", lines[0])
	}
	if !strings.Contains(lines[1], "20.0.0") {
		t.Errorf("diagnostic should name the required version: %q", lines[1])
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
}

func TestCheckStringComparison(t *testing.T) {
	code, _, _ := runGuard(t, ptr("09.1.0"), "v9.1.0", nil)
	if code != ExitMismatch {
		t.Errorf("exit = %d, \"09\" and \"9\" must not compare equal", code)
	}
}

func TestCheckEmptyPin(t *testing.T) {
	for _, pin := range []string{"", "  \n", "v", "v.5"} {
		code, _, stderr := runGuard(t, ptr(pin), "v18.4.0", nil)
		if code != ExitMalformed {
			t.Errorf("pin %q: exit = %d, want 1", pin, code)
		}
		if !strings.Contains(stderr, "empty or malformed") {
			t.Errorf("pin %q: stderr = %q", pin, stderr)
		}
	}
}

func TestCheckMissingPin(t *testing.T) {
	code, stdout, stderr := runGuard(t, nil, "v18.4.0", nil)
	if code != ExitOK {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "not found") {
		t.Errorf("stdout = %q, want informational message", stdout)
	}
	if stderr != "" {
		t.Errorf("stderr = %q, want empty", stderr)
	}
}

func TestCheckRuntimeUnavailable(t *testing.T) {
	code, _, stderr := runGuard(t, ptr("18"), "", errors.New("exec: \"node\": executable file not found in $PATH"))
	if code != ExitRuntimeUnavailable {
		t.Errorf("exit = %d, want 3", code)
	}
	if !strings.Contains(stderr, "node") {
		t.Errorf("stderr = %q", stderr)
	}
}

type stubRunner struct {
	out  string
	name string
	args []string
}

func (s *stubRunner) Output(name string, args ...string) ([]byte, error) {
	s.name, s.args = name, args
	return []byte(s.out), nil
}

func (s *stubRunner) Run(string, ...string) error { return nil }

func TestNodeVersion(t *testing.T) {
	r := &stubRunner{out: "v18.12.1\n"}
	v, err := NodeVersion(r, "")()
	if err != nil {
		t.Fatalf("NodeVersion: %v", err)
	}
	if v != "v18.12.1" {
		t.Errorf("version = %q", v)
	}
	if r.name != "node" || len(r.args) != 1 || r.args[0] != "--version" {
		t.Errorf("ran %s %v", r.name, r.args)
	}
}
