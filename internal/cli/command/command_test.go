package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/core/domain"
	"github.com/yndnr/filekv/internal/core/service"
	"github.com/yndnr/filekv/internal/server/localserver"
	"github.com/yndnr/filekv/internal/telemetry/logger"
)

// startServer runs a local server over a real store and returns its socket.
func startServer(t *testing.T) string {
	t.Helper()

	cfg := service.DefaultDataStoreConfig()
	cfg.DefaultDir = t.TempDir()
	cfg.Reaper.Interval = time.Hour
	store, err := service.NewDataStore(cfg, service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewDataStore: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })

	dir, err := os.MkdirTemp("", "fkvcli")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")

	l, _ := logger.New(logger.Config{Level: "error", Output: io.Discard})
	srv := localserver.New(path, localserver.NewHandler(store), localserver.WithLogger(l))
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return path
}

// runCLI runs the app and returns stdout and the exit code.
func runCLI(t *testing.T, socket string, stdin string, args ...string) (string, int) {
	t.Helper()

	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"filekv-cli", "--socket", socket}, args...))
	code := ExitOK
	if err != nil {
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		} else {
			code = ExitFailure
		}
	}
	return out.String(), code
}

func TestCLI_PutGetDelete(t *testing.T) {
	sock := startServer(t)

	out, code := runCLI(t, sock, "", "put", "--ttl", "1m", "user1", `{"a":1}`)
	if code != ExitOK || strings.TrimSpace(out) != "OK" {
		t.Fatalf("put = (%q, %d)", out, code)
	}

	out, code = runCLI(t, sock, "", "get", "user1")
	if code != ExitOK || strings.TrimSpace(out) != `{"a":1}` {
		t.Fatalf("get = (%q, %d)", out, code)
	}

	_, code = runCLI(t, sock, "", "put", "user1", `{"a":2}`)
	if code != ExitConflict {
		t.Errorf("duplicate put exit = %d, want %d", code, ExitConflict)
	}

	if _, code = runCLI(t, sock, "", "delete", "user1"); code != ExitOK {
		t.Fatalf("delete exit = %d", code)
	}
	if _, code = runCLI(t, sock, "", "get", "user1"); code != ExitNotFound {
		t.Errorf("get after delete exit = %d, want %d", code, ExitNotFound)
	}
}

func TestCLI_PutFromStdinAndFile(t *testing.T) {
	sock := startServer(t)

	if _, code := runCLI(t, sock, `[1,2,3]`, "put", "fromstdin", "-"); code != ExitOK {
		t.Fatalf("put from stdin exit = %d", code)
	}

	path := filepath.Join(t.TempDir(), "v.json")
	if err := os.WriteFile(path, []byte(`{"f":true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, code := runCLI(t, sock, "", "put", "--file", path, "fromfile"); code != ExitOK {
		t.Fatalf("put from file exit = %d", code)
	}

	out, _ := runCLI(t, sock, "", "get", "fromstdin")
	if strings.TrimSpace(out) != `[1,2,3]` {
		t.Errorf("get fromstdin = %q", out)
	}
}

func TestCLI_UsageErrors(t *testing.T) {
	sock := startServer(t)

	tests := []struct {
		name string
		args []string
	}{
		{"put without data", []string{"put", "k"}},
		{"put bad ttl", []string{"put", "--ttl", "soon", "k", "{}"}},
		{"get without key", []string{"get"}},
		{"bad output", []string{"--output", "xml", "ping"}},
		{"invalid key", []string{"put", strings.Repeat("k", 33), "{}"}},
		{"invalid payload", []string{"put", "k", "not json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := runCLI(t, sock, "", tt.args...); code != ExitUsage {
				t.Errorf("exit = %d, want %d", code, ExitUsage)
			}
		})
	}
}

func TestCLI_OutputFormats(t *testing.T) {
	sock := startServer(t)
	runCLI(t, sock, "", "put", "k", `{"v":1}`)

	out, code := runCLI(t, sock, "", "--output", "json", "get", "k")
	if code != ExitOK {
		t.Fatalf("exit = %d", code)
	}
	var v Value
	if err := json.Unmarshal([]byte(out), &v); err != nil || v.Key != "k" || v.Data != `{"v":1}` {
		t.Errorf("json output = %q (%v)", out, err)
	}

	out, _ = runCLI(t, sock, "", "-o", "yaml", "status")
	if !strings.Contains(out, "entries: 1") {
		t.Errorf("yaml status = %q", out)
	}

	out, _ = runCLI(t, sock, "", "status")
	if !strings.Contains(out, "reaper_state") {
		t.Errorf("table status = %q", out)
	}
}

func TestCLI_PingAndSweep(t *testing.T) {
	sock := startServer(t)

	out, code := runCLI(t, sock, "", "ping")
	if code != ExitOK || !strings.HasPrefix(out, "PONG") {
		t.Errorf("ping = (%q, %d)", out, code)
	}

	out, code = runCLI(t, sock, "", "-o", "json", "sweep")
	if code != ExitOK || !strings.Contains(out, `"reaped"`) {
		t.Errorf("sweep = (%q, %d)", out, code)
	}
}

func TestCLI_ServerUnavailable(t *testing.T) {
	_, code := runCLI(t, filepath.Join(t.TempDir(), "none.sock"), "", "ping")
	if code != ExitUnavailable {
		t.Errorf("exit = %d, want %d", code, ExitUnavailable)
	}
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"1500", 1500 * time.Millisecond, false},
		{"30s", 30 * time.Second, false},
		{"later", 0, true},
		{"-5s", 0, true},
		{"-1", 0, true},
		{"9300000000000", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTTL(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseTTL(%q) = (%v, %v)", tt.in, got, err)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidKey, ExitUsage},
		{domain.ErrKeyNotFound.WithDetails("x"), ExitNotFound},
		{domain.ErrLockContention, ExitConflict},
		{domain.ErrStoreClosed, ExitUnavailable},
		{domain.ErrWriteFailed, ExitFailure},
		{errors.New("other"), ExitFailure},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
