package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const rawFrame = `{"type":2,"item":{"messages":[{"messageType":"DeveloperLogs","text":"{\"b\":[1,2]}","createdAt":"t"}]}}` + "\x1e"

func TestRunRawFromStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--raw"}, strings.NewReader(rawFrame+"\n"), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	want := "{\n  \"b\": [\n    1,\n    2\n  ]\n}\n"
	if stdout.String() != want {
		t.Fatalf("stdout = %q; want %q", stdout.String(), want)
	}
	if !strings.Contains(stderr.String(), "emitted=1") {
		t.Fatalf("stderr = %q; want summary", stderr.String())
	}
}

func TestRunQuietFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.txt")
	if err := os.WriteFile(path, []byte(rawFrame+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--raw", "-q", path}, strings.NewReader(""), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q; want nothing in quiet mode", stdout.String())
	}
	if !strings.Contains(stderr.String(), "frames=1") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunRejectsBadArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"a", "b"}, strings.NewReader(""), &stdout, &stderr); err == nil {
		t.Fatal("run(two files) = nil error")
	}
	if err := run([]string{"--log-level", "loud"}, strings.NewReader(""), &stdout, &stderr); err == nil {
		t.Fatal("run(bad level) = nil error")
	}
	if err := run([]string{"--nope"}, strings.NewReader(""), &stdout, &stderr); err == nil {
		t.Fatal("run(unknown flag) = nil error")
	}
}
