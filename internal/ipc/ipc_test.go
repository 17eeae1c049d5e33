package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sorter/internal/daemon"
	"sorter/internal/ipc"
	"sorter/internal/logging"
)

type fakeProvider struct {
	status  daemon.Status
	logPath string
}

func (p fakeProvider) Status() daemon.Status { return p.status }
func (p fakeProvider) LogPath() string       { return p.logPath }

func startServer(t *testing.T, p ipc.Provider) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "sorter.sock")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, socket, p, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	return socket
}

func dial(t *testing.T, socket string) *ipc.Client {
	t.Helper()
	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStatusRoundTrip(t *testing.T) {
	want := daemon.Status{
		Running:    true,
		PID:        4242,
		Roots:      []string{"/srv/inbox"},
		Categories: []string{"docs", "images"},
		Rules:      3,
		Backend:    "fsnotify",
	}
	want.Stats.Relocated = 7
	client := dial(t, startServer(t, fakeProvider{status: want}))

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	got := resp.Status
	if !got.Running || got.PID != 4242 || got.Rules != 3 || got.Stats.Relocated != 7 {
		t.Fatalf("unexpected status %+v", got)
	}
	if len(got.Roots) != 1 || got.Roots[0] != "/srv/inbox" {
		t.Fatalf("unexpected roots %v", got.Roots)
	}
}

func TestLogTail(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sorter.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	client := dial(t, startServer(t, fakeProvider{logPath: logPath}))

	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "second" || resp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", resp.Lines)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append log: %v", err)
	}
	_, _ = f.WriteString("fourth\n")
	_ = f.Close()

	next, err := client.LogTail(ipc.LogTailRequest{Offset: resp.Offset, Follow: true, WaitMillis: 500})
	if err != nil {
		t.Fatalf("LogTail follow failed: %v", err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "fourth" {
		t.Fatalf("unexpected follow lines: %#v", next.Lines)
	}
}

func TestLogTailWithoutLogPath(t *testing.T) {
	client := dial(t, startServer(t, fakeProvider{}))
	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 0 {
		t.Fatalf("expected no lines, got %v", resp.Lines)
	}
}

func TestCloseRemovesSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "sorter.sock")
	srv, err := ipc.NewServer(context.Background(), socket, fakeProvider{}, nil)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv.Serve()
	srv.Close()
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, stat err = %v", err)
	}
	if _, err := ipc.Dial(socket); err == nil {
		t.Fatal("dial after close should fail")
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "sorter.sock")
	srv, err := ipc.NewServer(context.Background(), socket, fakeProvider{}, nil)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv.Serve()

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	defer client.Close()
	if _, err := client.Status(); err != nil {
		t.Fatalf("Status before close: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a connected client")
	}
	if _, err := client.Status(); err == nil {
		t.Fatal("expected Status to fail after server close")
	}
}
