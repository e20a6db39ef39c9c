package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pavolctl/internal/domain"
	"pavolctl/internal/logging"
)

const statusPage = `2 sink(s) available.
    index: 0
	name: <alsa_output.hdmi>
	volume: front-left: 32768 /  50% / -18.06 dB
  * index: 1
	name: <alsa_output.analog>
	volume: front-left: 43253 /  66% / -10.83 dB,   front-right: 43253 /  66% / -10.83 dB
1 source(s) available.
  * index: 0
	volume: mono: 6553 /  10% / -60.00 dB
`

// run executes the root command with an isolated config and env file.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--env", filepath.Join(dir, ".env"),
	}
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func hostPort(t *testing.T, addr string) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	return host, port
}

func TestGetJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, statusPage)
	}))
	defer ts.Close()
	host, port := hostPort(t, strings.TrimPrefix(ts.URL, "http://"))

	out, err := run(t, "--http-host", host, "--http-port", port, "get", "--json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var snap domain.StatusSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if snap.SinkVolumePercent != 66 || snap.SourceVolumePercent != 10 {
		t.Fatalf("snapshot = %+v, want {66 10}", snap)
	}
}

func TestGetText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, statusPage)
	}))
	defer ts.Close()
	host, port := hostPort(t, strings.TrimPrefix(ts.URL, "http://"))

	out, err := run(t, "--http-host", host, "--http-port", port, "get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "66%") || !strings.Contains(out, "10%") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGetServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()
	host, port := hostPort(t, strings.TrimPrefix(ts.URL, "http://"))

	_, err := run(t, "--http-host", host, "--http-port", port, "get")
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *domain.FetchError", err)
	}
}

func TestSetDryRun(t *testing.T) {
	out, err := run(t, "--dry-run", "set", "sink", "40")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "sink set to 40%") || !strings.Contains(out, "dry-run: set-sink-volume @DEFAULT_SINK@ 26214") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSetRejectsInput(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want error
	}{
		{"out of range", []string{"--dry-run", "set", "--sink", "150"}, domain.ErrInvalidVolume},
		{"negative", []string{"--dry-run", "set", "source", "-1"}, domain.ErrInvalidVolume},
		{"unknown device", []string{"--dry-run", "set", "speaker", "10"}, domain.ErrUnknownDeviceClass},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := run(t, "--dry-run", "set"); err == nil {
		t.Fatal("set without targets should fail")
	}
	if _, err := run(t, "--dry-run", "set", "sink", "abc"); err == nil {
		t.Fatal("non-numeric percent should fail")
	}
}

func TestSetSendsOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	lines := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	host, port := hostPort(t, ln.Addr().String())
	out, err := run(t, "--cmd-host", host, "--cmd-port", port, "set", "--sink", "66", "--source", "10")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "sink set to 66%") || !strings.Contains(out, "source set to 10%") {
		t.Fatalf("unexpected output %q", out)
	}

	want := []string{
		"set-sink-volume @DEFAULT_SINK@ 43253",
		"set-source-volume @DEFAULT_SOURCE@ 6553",
	}
	for _, w := range want {
		select {
		case got := <-lines:
			if got != w {
				t.Fatalf("line = %q, want %q", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestSetConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	host, port := hostPort(t, addr)

	_, err = run(t, "--cmd-host", host, "--cmd-port", port, "--timeout", "2s", "set", "sink", "10")
	var ce *domain.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *domain.ConnectionError", err)
	}
}

func TestConfigShowAppliesFlags(t *testing.T) {
	out, err := run(t, "--cmd-port", "9999", "--http-host", "10.0.0.2", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "port: 9999") || !strings.Contains(out, "10.0.0.2") {
		t.Fatalf("flags not applied:\n%s", out)
	}
}

func TestInvalidFlagValue(t *testing.T) {
	if _, err := run(t, "--cmd-port", "0", "config", "show"); !errors.Is(err, domain.ErrInvalidEndpoint) {
		t.Fatalf("err = %v, want ErrInvalidEndpoint", err)
	}
}

// lineServer accepts one connection and forwards each received line.
func lineServer(t *testing.T) (host, port string, lines <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan string, 8)
	go func() {
		defer close(ch)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()

	host, port = hostPort(t, ln.Addr().String())
	return host, port, ch
}

func expectLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	select {
	case got := <-lines:
		if got != want {
			t.Fatalf("line = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestSetWithoutWaitDelivers(t *testing.T) {
	for i := 0; i < 5; i++ {
		host, port, lines := lineServer(t)
		out, err := run(t, "--cmd-host", host, "--cmd-port", port, "set", "--wait=false", "sink", "40")
		if err != nil {
			t.Fatalf("run %d: set: %v", i, err)
		}
		if !strings.Contains(out, "sink set to 40%") {
			t.Fatalf("run %d: unexpected output %q", i, out)
		}
		expectLine(t, lines, "set-sink-volume @DEFAULT_SINK@ 26214")
	}
}

func TestLogLevelFlag(t *testing.T) {
	defer logging.SetVerbosity(0)

	out, err := run(t, "--log-level", "debug", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "level: debug") {
		t.Fatalf("log level not applied:\n%s", out)
	}
	if logging.LevelName() != "debug" {
		t.Fatalf("level = %s, want debug", logging.LevelName())
	}

	if _, err := run(t, "-v", "--log-level", "error", "config", "show"); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if logging.LevelName() != "info" {
		t.Fatalf("-v should win over --log-level, got %s", logging.LevelName())
	}

	if _, err := run(t, "--log-level", "loud", "config", "show"); err == nil {
		t.Fatal("unknown log level should fail validation")
	}
}

func newTestShell(t *testing.T, extra ...string) (*shell, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	base := append([]string{
		"--config=" + filepath.Join(dir, "config.yaml"),
		"--env=" + filepath.Join(dir, ".env"),
	}, extra...)
	return newShell(&out, base), &out
}

func TestShellVolumeShortcuts(t *testing.T) {
	defer logging.SetVerbosity(0)
	sh, out := newTestShell(t, "--dry-run=true")

	for _, line := range []string{"sink 40", "source 10%", "set --sink 66"} {
		if quit, err := sh.exec(line); err != nil || quit {
			t.Fatalf("%q: quit=%v err=%v", line, quit, err)
		}
	}
	for _, want := range []string{
		"dry-run: set-sink-volume @DEFAULT_SINK@ 26214",
		"dry-run: set-source-volume @DEFAULT_SOURCE@ 6553",
		"dry-run: set-sink-volume @DEFAULT_SINK@ 43253",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in:\n%s", want, out.String())
		}
	}

	if _, err := sh.exec("sink"); err == nil {
		t.Error("sink without a percent should fail")
	}
	if _, err := sh.exec("output 150"); !errors.Is(err, domain.ErrInvalidVolume) {
		t.Errorf("err = %v, want ErrInvalidVolume", err)
	}
}

func TestShellSendsToSessionEndpoint(t *testing.T) {
	host, port, lines := lineServer(t)
	sh, _ := newTestShell(t, "--cmd-host="+host, "--cmd-port="+port)

	if _, err := sh.exec("source 10"); err != nil {
		t.Fatalf("source 10: %v", err)
	}
	expectLine(t, lines, "set-source-volume @DEFAULT_SOURCE@ 6553")
}

func TestShellBuiltins(t *testing.T) {
	defer logging.SetVerbosity(0)
	sh, out := newTestShell(t)

	if quit, err := sh.exec("   "); quit || err != nil {
		t.Fatalf("blank line: quit=%v err=%v", quit, err)
	}
	if _, err := sh.exec(`get "unterminated`); err == nil {
		t.Error("unbalanced quote should fail to parse")
	}
	if _, err := sh.exec("shell"); err == nil {
		t.Error("nested shell should be refused")
	}
	if _, err := sh.exec("bogus"); err == nil {
		t.Error("unknown command should fail")
	}

	if _, err := sh.exec("log debug"); err != nil {
		t.Fatalf("log debug: %v", err)
	}
	if sh.logLevel != "debug" || logging.LevelName() != "debug" {
		t.Fatalf("session=%s level=%s, want debug", sh.logLevel, logging.LevelName())
	}
	if _, err := sh.exec("config show"); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "level: debug") {
		t.Errorf("session log level not passed on:\n%s", out.String())
	}
	if _, err := sh.exec("log -v"); err != nil || sh.logLevel != "info" {
		t.Fatalf("log -v: level=%s err=%v", sh.logLevel, err)
	}
	if _, err := sh.exec("log loud"); err == nil {
		t.Error("unknown level should fail")
	}
	if _, err := sh.exec("log -v debug"); err == nil {
		t.Error("level and -v together should fail")
	}

	if quit, _ := sh.exec("exit"); !quit {
		t.Error("exit should end the session")
	}
}

func TestSessionArgs(t *testing.T) {
	root := NewRootCmd()
	pf := root.PersistentFlags()
	for name, value := range map[string]string{"cmd-port": "4800", "dry-run": "true", "verbose": "2"} {
		if err := pf.Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	shellCmd, _, err := root.Find([]string{"shell"})
	if err != nil {
		t.Fatalf("find shell: %v", err)
	}

	got := strings.Join(sessionArgs(shellCmd), " ")
	if got != "--cmd-port=4800 --dry-run=true" {
		t.Fatalf("session args = %q", got)
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pavolctl", "config.yaml")
	args := func(extra ...string) []string {
		return append([]string{"--config", path, "--env", filepath.Join(dir, ".env")}, extra...)
	}

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs(args("--cmd-port", "4800", "config", "init"))
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	var out bytes.Buffer
	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs(args("config", "show"))
	if err := root.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "port: 4800") {
		t.Fatalf("saved config not loaded:\n%s", out.String())
	}

	root = NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs(args("config", "init"))
	if err := root.Execute(); err == nil {
		t.Fatal("init over an existing file should fail without --force")
	}
}
