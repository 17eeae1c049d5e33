// Package daemonrun assembles the agent process: logging, preflight snapshot,
// optional history store, IPC server, and the daemon itself.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"sorter/internal/config"
	"sorter/internal/daemon"
	"sorter/internal/engine"
	"sorter/internal/history"
	"sorter/internal/ipc"
	"sorter/internal/logging"
	"sorter/internal/preflight"
	"sorter/internal/watchset"
)

const (
	logPrefix      = "sorter-"
	currentLogName = "sorter.log"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdout mirrors log lines to standard output in addition to the run log.
	Stdout bool
	// DisableIPC skips the status socket.
	DisableIPC bool
	// Subscribe overrides the watch backend; nil uses watcher.Subscribe.
	Subscribe daemon.SubscribeFunc
	// Ready is called once the daemon has been constructed.
	Ready func(*daemon.Daemon)
}

// Run starts the sorter agent and blocks until a signal or a fatal stream
// error. A clean shutdown returns nil.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, logPrefix+runID+".log")
	outputs := []string{logPath}
	if opts.Stdout {
		outputs = append([]string{"stdout"}, outputs...)
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	base, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := base.With(logging.String(logging.FieldRunID, runID))

	// Nothing shared with a running agent (socket, log pointer, history) is
	// touched until the lock is held.
	lock, err := daemon.AcquireInstanceLock(cfg.LockPath())
	if err != nil {
		hint := "check state_dir permissions"
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			hint = hintFor(err)
		}
		logging.ErrorWithContext(logger, "agent lock unavailable", "lock_unavailable",
			logging.Error(err),
			logging.String("lock", cfg.LockPath()),
			logging.String(logging.FieldErrorHint, hint),
		)
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release agent lock", "lock_release_failed",
				logging.Error(err),
				logging.String("lock", lock.Path()),
				logging.String(logging.FieldErrorHint, "remove the lock file if no agent is running"),
			)
		}
	}()

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logPrefix + "*.log", Exclude: []string{logPath}},
	)
	logPreflightSnapshot(signalCtx, logger, cfg)

	ws, overrides, err := cfg.WatchSet()
	if err != nil {
		return fmt.Errorf("compile watch set: %w", err)
	}
	logOverrides(logger, overrides)

	daemonOpts := []daemon.Option{
		daemon.WithRunID(runID),
		daemon.WithLogPath(logPath),
		daemon.WithInstanceLock(lock),
	}
	if opts.Subscribe != nil {
		daemonOpts = append(daemonOpts, daemon.WithSubscriber(opts.Subscribe))
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logging.ErrorWithContext(logger, "open history store", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [history]"),
			)
			return err
		}
		defer store.Close()
		daemonOpts = append(daemonOpts, daemon.WithRecorder(store))
	}

	d, err := daemon.New(cfg, ws, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if !opts.DisableIPC {
		ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
		if err != nil {
			logging.WarnWithContext(logger, "status socket unavailable", "ipc_start_failed",
				logging.Error(err),
				logging.String("socket", cfg.SocketPath()),
				logging.String(logging.FieldErrorHint, "check state_dir permissions"),
				logging.String(logging.FieldImpact, "'sorter status' and 'sorter logs' cannot reach this agent"),
			)
		} else {
			defer ipcServer.Close()
			ipcServer.Serve()
		}
	}

	if opts.Ready != nil {
		opts.Ready(d)
	}

	err = d.Run(signalCtx)
	switch {
	case err == nil:
		logger.Info("sorter agent shutting down", logging.String(logging.FieldEventType, "agent_shutdown"))
		return nil
	case errors.Is(err, engine.ErrStreamEnded):
		logging.ErrorWithContext(logger, "watch backend stopped delivering notifications", "watch_stream_ended",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restart the agent; check that watched directories still exist"),
		)
	default:
		logging.ErrorWithContext(logger, "agent failed", "agent_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
	}
	return err
}

func hintFor(err error) string {
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return "stop the other agent or use a different state_dir"
	}
	return "check watch.paths and the watch backend"
}

func logOverrides(logger *slog.Logger, overrides []watchset.Override) {
	for _, o := range overrides {
		logging.WarnWithContext(logger, "extension claimed by more than one category", "category_override",
			logging.String("extension", o.Extension),
			logging.String("previous", o.Previous),
			logging.String(logging.FieldCategory, o.Category),
			logging.String(logging.FieldErrorHint, "remove the extension from one category"),
			logging.String(logging.FieldImpact, "files with this extension go to the later category"),
		)
	}
}

func logPreflightSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	failed := preflight.Failed(results)
	logger.Info("preflight snapshot",
		logging.String(logging.FieldEventType, "preflight_snapshot"),
		logging.Int("checks", len(results)),
		logging.Int("failed", len(failed)),
	)
	for _, r := range failed {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the path or its permissions"),
			logging.String(logging.FieldImpact, "files may not be relocated"),
		)
	}
}

// ensureCurrentLogPointer points logDir/sorter.log at target, falling back to
// a hard link where symlinks are unavailable.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// CurrentLogPath is the stable pointer to the latest run log.
func CurrentLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, currentLogName)
}
