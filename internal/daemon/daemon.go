package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"sorter/internal/config"
	"sorter/internal/engine"
	"sorter/internal/history"
	"sorter/internal/logging"
	"sorter/internal/relocate"
	"sorter/internal/watcher"
	"sorter/internal/watchset"
)

// ErrAlreadyRunning is returned by Run when another agent holds the lock.
var ErrAlreadyRunning = errors.New("another sorter agent is already running")

// SubscribeFunc opens a notification stream for the given roots.
type SubscribeFunc func(roots []string, opts watcher.Options) (watcher.Stream, error)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithRecorder records successful relocations.
func WithRecorder(r engine.Recorder) Option {
	return func(d *Daemon) { d.recorder = r }
}

// WithRunID tags logs and history entries with the run identifier.
func WithRunID(id string) Option {
	return func(d *Daemon) { d.runID = id }
}

// WithLogPath sets the log file served to `sorter logs`.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// WithInstanceLock hands Run a lock the caller already holds. The caller
// releases it.
func WithInstanceLock(l *InstanceLock) Option {
	return func(d *Daemon) { d.held = l }
}

// WithSubscriber replaces watcher.Subscribe.
func WithSubscriber(fn SubscribeFunc) Option {
	return func(d *Daemon) { d.subscribe = fn }
}

// Daemon runs one engine over one stream for the lifetime of the process.
type Daemon struct {
	cfg       *config.Config
	watchSet  *watchset.WatchSet
	logger    *slog.Logger
	engine    *engine.Engine
	recorder  engine.Recorder
	subscribe SubscribeFunc
	runID     string
	logPath   string

	lockPath string
	held     *InstanceLock

	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool         `json:"running"`
	PID         int          `json:"pid"`
	RunID       string       `json:"run_id,omitempty"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	Roots       []string     `json:"roots"`
	Categories  []string     `json:"categories"`
	Rules       int          `json:"rules"`
	Backend     string       `json:"backend"`
	Recursive   bool         `json:"recursive"`
	OnConflict  string       `json:"on_conflict"`
	CrossDevice string       `json:"cross_device"`
	LockPath    string       `json:"lock_path"`
	LogPath     string       `json:"log_path,omitempty"`
	HistoryPath string       `json:"history_path,omitempty"`
	Stats       engine.Stats `json:"stats"`
}

// New constructs a daemon. The watch set must come from cfg.
func New(cfg *config.Config, ws *watchset.WatchSet, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || ws == nil {
		return nil, errors.New("daemon requires config and watch set")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:       cfg,
		watchSet:  ws,
		logger:    logger,
		subscribe: watcher.Subscribe,
		lockPath:  cfg.LockPath(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.held != nil {
		d.lockPath = d.held.Path()
	}

	engineOpts := []engine.Option{engine.WithRunID(d.runID)}
	if d.recorder != nil {
		engineOpts = append(engineOpts, engine.WithRecorder(d.recorder))
	}
	relocator := relocate.New(relocate.Options{
		OnConflict:  cfg.Relocate.OnConflict,
		CrossDevice: cfg.Relocate.CrossDevice,
	})
	d.engine = engine.New(ws, relocator, logger, engineOpts...)
	return d, nil
}

// Run acquires the lock unless one was supplied, subscribes to the watch
// roots, and drives the engine until ctx is cancelled (nil) or the stream fails.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if d.held == nil {
		lock, err := AcquireInstanceLock(d.lockPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logging.WarnWithContext(d.logger, "failed to release agent lock", "lock_release_failed",
					logging.Error(err),
					logging.String("lock", d.lockPath),
					logging.String(logging.FieldErrorHint, "remove the lock file if no agent is running"),
					logging.String(logging.FieldImpact, "next start may report a running agent"),
				)
			}
		}()
	}

	roots := d.watchSet.Roots()
	stream, err := d.subscribe(roots, watcher.Options{
		Backend:   d.cfg.Watch.Backend,
		Recursive: d.cfg.Watch.Recursive,
		Logger:    d.logger,
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer stream.Close()

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.logger.Info("sorter agent started",
		logging.String(logging.FieldEventType, "agent_started"),
		logging.Any("roots", roots),
		logging.Int("rules", len(d.watchSet.Rules())),
		logging.String("backend", d.cfg.Watch.Backend),
		logging.String("lock", d.lockPath),
	)

	err = d.engine.Run(ctx, stream)
	stats := d.engine.Stats()
	d.logger.Info("sorter agent stopped",
		logging.String(logging.FieldEventType, "agent_stopped"),
		logging.Uint64("relocated", stats.Relocated),
		logging.Uint64("failures", stats.Failures),
	)
	return err
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// WatchSet returns the compiled roots and rules.
func (d *Daemon) WatchSet() *watchset.WatchSet {
	return d.watchSet
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Stats returns the engine counters.
func (d *Daemon) Stats() engine.Stats {
	return d.engine.Stats()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		RunID:       d.runID,
		StartedAt:   startedAt,
		Roots:       d.watchSet.Roots(),
		Categories:  d.watchSet.Categories(),
		Rules:       len(d.watchSet.Rules()),
		Backend:     d.cfg.Watch.Backend,
		Recursive:   d.cfg.Watch.Recursive,
		OnConflict:  d.cfg.Relocate.OnConflict,
		CrossDevice: d.cfg.Relocate.CrossDevice,
		LockPath:    d.lockPath,
		LogPath:     d.logPath,
		Stats:       d.engine.Stats(),
	}
	if d.cfg.History.Enabled {
		status.HistoryPath = filepath.Join(d.cfg.Paths.StateDir, history.FileName)
	}
	return status
}
