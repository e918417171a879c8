// Package app wires the configuration, settings, history and engine
// packages together behind the methods the CLI commands call.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"savesaver/internal/config"
	"savesaver/internal/discover"
	"savesaver/internal/fs"
	"savesaver/internal/history"
	"savesaver/internal/saver"
	"savesaver/internal/settings"
)

// App holds the long-lived resources for one CLI invocation.
type App struct {
	cfg     *config.Config
	store   *settings.Store
	history *history.Store
	manager *saver.SessionManager
	clock   saver.Clock
	op      *Operation
	logger  *slog.Logger
	logFile *os.File
}

// NewApp creates an App from the loaded config. operation names the CLI
// command for logging and history purposes.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	return newApp(cfg, operation, saver.RealClock{}, saver.UUIDGenerator{})
}

// newApp is NewApp with the time and ID seams injectable for tests.
func newApp(cfg *config.Config, operation string, clock saver.Clock, ids saver.IDGenerator) (*App, error) {
	runID := ids.New()
	if len(runID) > 8 {
		runID = runID[:8]
	}

	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, err
	}

	hist, err := history.NewStoreFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	manager := saver.NewSessionManager(fs.NewOSCopier(), saver.ManagerOptions{
		SlotPrefix: cfg.SlotPrefix,
		Retry: saver.RetryPolicy{
			Attempts: cfg.Retry.Attempts,
			Backoff:  cfg.Retry.BackoffDuration(),
		},
		MirrorDeletes: cfg.MirrorDeletes,
		Ignore:        fs.NewIgnoreMatcher(cfg.Ignore),
	}, clock, &slogAdapter{l: logger})

	logger.Info("starting operation", "operation", operation)

	return &App{
		cfg:     cfg,
		store:   settings.NewStore(filepath.Join(cfg.BaseDir, "settings.json")),
		history: hist,
		manager: manager,
		clock:   clock,
		op:      NewOperation(operation),
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Logger exposes the structured logger for command-level messages.
func (a *App) Logger() *slog.Logger { return a.logger }

// persistOperation records the operation in the history store, once.
func (a *App) persistOperation(target, detail string) {
	if a.op.Persisted() {
		return
	}
	a.op.Target = target
	a.op.Detail = detail
	id, err := a.history.Record(a.op.Name, target, detail, a.clock.Now())
	if err != nil {
		a.logger.Warn("could not record operation", "error", err)
		return
	}
	a.op.ID = id
}

// fail marks the operation failed and passes the error through.
func (a *App) fail(err error) error {
	if err != nil {
		a.op.Status = "error"
	}
	return err
}

// loadTargets reads the settings file. Unset backup folders default to a
// per-target directory under the base dir; with detect set, unset save
// folders are filled from discovery (in memory only, never persisted).
func (a *App) loadTargets(detect bool) map[string]saver.TargetConfig {
	targets, err := a.store.Load()
	if err != nil {
		a.logger.Warn("settings load problem", "error", err)
	}

	for name, cfg := range targets {
		if cfg.BackupFolder == "" {
			cfg.BackupFolder = filepath.Join(a.cfg.BaseDir, "saves", name)
		}
		if detect && cfg.SaveFolder == "" {
			if candidates := a.Discover(); len(candidates) > 0 {
				cfg.SaveFolder = candidates[0]
				a.logger.Info("auto-detected save folder",
					"target", name, "path", cfg.SaveFolder)
			}
		}
		targets[name] = cfg
	}
	return targets
}

// Discover returns the candidate save folders for the configured hints.
func (a *App) Discover() []string {
	return discover.Discover(discover.Hints{
		DefaultPaths: a.cfg.Discovery.DefaultPaths,
		Markers:      a.cfg.Discovery.Markers,
		SaveSuffix:   a.cfg.Discovery.SaveSuffix,
		MaxDepth:     a.cfg.Discovery.MaxDepth,
	})
}

// AddTarget creates or updates a target's folder pair and persists it.
// Empty saveFolder or backupFolder leaves that side unset.
func (a *App) AddTarget(name, saveFolder, backupFolder string) error {
	a.persistOperation(name, fmt.Sprintf("save=%s backup=%s", saveFolder, backupFolder))
	if name == "" {
		return a.fail(fmt.Errorf("target name must not be empty"))
	}

	targets, err := a.store.Load()
	if err != nil {
		a.logger.Warn("settings load problem", "error", err)
	}

	cfg := targets[name]
	cfg.Name = name
	if saveFolder != "" {
		abs, err := filepath.Abs(saveFolder)
		if err != nil {
			return a.fail(fmt.Errorf("resolving save folder: %w", err))
		}
		cfg.SaveFolder = abs
	}
	if backupFolder != "" {
		abs, err := filepath.Abs(backupFolder)
		if err != nil {
			return a.fail(fmt.Errorf("resolving backup folder: %w", err))
		}
		cfg.BackupFolder = abs
	}
	targets[name] = cfg

	if err := a.store.Save(targets); err != nil {
		return a.fail(fmt.Errorf("saving settings: %w", err))
	}
	a.logger.Info("target saved", "target", name)
	return nil
}

// RemoveTarget deletes a target from the settings file. Backups on disk are
// left alone.
func (a *App) RemoveTarget(name string) error {
	a.persistOperation(name, "")

	targets, err := a.store.Load()
	if err != nil {
		a.logger.Warn("settings load problem", "error", err)
	}
	if _, ok := targets[name]; !ok {
		return a.fail(fmt.Errorf("unknown target: %s", name))
	}
	delete(targets, name)

	if err := a.store.Save(targets); err != nil {
		return a.fail(fmt.Errorf("saving settings: %w", err))
	}
	a.logger.Info("target removed", "target", name)
	return nil
}

// ListTargets returns the configured targets sorted by name, with defaults
// and auto-detection applied the same way Run would apply them.
func (a *App) ListTargets() []saver.TargetConfig {
	targets := a.loadTargets(true)
	out := make([]saver.TargetConfig, 0, len(targets))
	for _, cfg := range targets {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run starts a watch session for every configured target and blocks until
// ctx is cancelled, then shuts the sessions down cleanly. Engine status
// events are echoed to stdout while it runs.
func (a *App) Run(ctx context.Context) error {
	a.persistOperation("", "")

	targets := a.loadTargets(true)
	if len(targets) == 0 {
		return a.fail(fmt.Errorf("no targets configured; add one with 'target add'"))
	}
	a.manager.ApplyConfig(targets)

	// Echo engine status events to stdout until the run is cancelled.
	go func() {
		for {
			select {
			case ev := <-a.manager.Events():
				fmt.Printf("%s [%s] %s\n",
					ev.Time.Format("15:04:05"), ev.Target, ev.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")
	a.manager.Shutdown()
	return nil
}

// BackupNow performs an on-demand full sweep for the target.
func (a *App) BackupNow(target string) ([]saver.SlotEntry, error) {
	a.persistOperation(target, "")
	a.manager.SetTargets(a.loadTargets(true))

	entries, err := a.manager.BackupNow(target)
	if err != nil {
		return entries, a.fail(err)
	}
	return entries, nil
}

// Snapshots lists the target's stored snapshots, newest first.
func (a *App) Snapshots(target string) ([]saver.BackupSnapshot, error) {
	a.manager.SetTargets(a.loadTargets(false))
	return a.manager.ListSnapshots(target)
}

// Restore copies the named snapshot back into the target's save folder.
func (a *App) Restore(target, snapshotName string) error {
	a.persistOperation(target, snapshotName)
	a.manager.SetTargets(a.loadTargets(true))
	return a.fail(a.manager.Restore(target, snapshotName))
}

// Status reports every configured target's folders and backup size.
func (a *App) Status() []saver.TargetStatus {
	a.manager.SetTargets(a.loadTargets(true))
	return a.manager.Status()
}

// History returns the most recent recorded operations, newest first.
func (a *App) History(limit int) ([]*history.Operation, error) {
	return a.history.Recent(limit)
}

// Close finalizes the history record and releases resources. Call it once,
// after the command's work is done.
func (a *App) Close() error {
	if a.op.Persisted() {
		if err := a.history.Finish(a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			a.logger.Warn("could not finish operation record", "error", err)
		}
	}
	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status)

	if err := a.history.Close(); err != nil {
		a.logFile.Close()
		return fmt.Errorf("closing history store: %w", err)
	}
	return a.logFile.Close()
}
