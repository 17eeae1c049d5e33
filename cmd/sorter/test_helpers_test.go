package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sorter/internal/config"
	"sorter/internal/daemon"
	"sorter/internal/ipc"
	"sorter/internal/logging"
	"sorter/internal/testsupport"
	"sorter/internal/watcher"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	stream     *testsupport.Stream
	socketPath string
	configPath string
	logPath    string
}

// setupCLITestEnv writes a config file under a temporary HOME. The agent is
// only started by startAgent.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv(config.LogLevelEnv, "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "sorter", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		logPath:    filepath.Join(cfg.Paths.LogDir, "sorter-test.log"),
	}
}

// startAgent runs a daemon over a scripted stream and serves it on the
// config's socket.
func (env *cliTestEnv) startAgent(t *testing.T) {
	t.Helper()

	ws, _, err := env.cfg.WatchSet()
	if err != nil {
		t.Fatalf("WatchSet: %v", err)
	}
	if err := os.WriteFile(env.logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}
	env.stream = testsupport.NewStream()
	stream := env.stream
	d, err := daemon.New(env.cfg, ws, logging.NewNop(),
		daemon.WithLogPath(env.logPath),
		daemon.WithSubscriber(func([]string, watcher.Options) (watcher.Stream, error) { return stream, nil }),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	env.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	testsupport.WaitFor(t, 2*time.Second, func() bool { return !d.Status().StartedAt.IsZero() })
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}
