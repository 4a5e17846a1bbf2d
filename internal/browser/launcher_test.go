package browser

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLauncherArgs(t *testing.T) {
	l := NewLauncher(Config{
		CDPAddress: "127.0.0.1",
		CDPPort:    9333,
		StartURL:   "https://teams.example.com/chat",
		ProfileDir: "/tmp/profile",
		Headless:   true,
	})
	want := []string{
		"--remote-debugging-port=9333",
		"--remote-debugging-address=127.0.0.1",
		"--user-data-dir=/tmp/profile",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--headless=new",
		"https://teams.example.com/chat",
	}
	if diff := cmp.Diff(want, l.args()); diff != "" {
		t.Errorf("args() mismatch (-want +got):\n%s", diff)
	}
}

func TestLaunchSkipsWhenCDPAlreadyListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port, BinaryPath: "definitely-not-a-browser"})
	if err := l.Launch(testContext(t)); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if l.Started() {
		t.Fatal("Started() = true; want false when reusing a running browser")
	}
	l.Stop()
}

func TestLaunchFailsWithoutBinary(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port, BinaryPath: "definitely-not-a-browser", ProfileDir: t.TempDir()})
	if err := l.Launch(testContext(t)); err == nil {
		t.Fatal("Launch() = nil error; want missing binary error")
	}
}

func TestWaitForCDP(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"Browser":"Chrome/120"}`))
	}))
	defer srv.Close()

	if err := waitForCDP(testContext(t), srv.URL+"/json/version", 2*time.Second); err != nil {
		t.Fatalf("waitForCDP() error = %v", err)
	}

	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	dead := "http://127.0.0.1:" + strconv.Itoa(ln.Addr().(*net.TCPAddr).Port) + "/json/version"
	ln.Close()
	if err := waitForCDP(testContext(t), dead, 300*time.Millisecond); err == nil {
		t.Fatal("waitForCDP(dead) = nil error")
	}
}
