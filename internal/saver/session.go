package saver

import (
	"fmt"
	"os"
	"sync"
)

// TargetConfig is the configured root pair for one tracked game.
type TargetConfig struct {
	Name         string
	SaveFolder   string // live save directory; may be empty when not yet configured
	BackupFolder string // backup destination; created if missing
}

// TargetStatus is a point-in-time report for one target, suitable for a
// status display.
type TargetStatus struct {
	Name           string
	SaveFolder     string
	BackupFolder   string
	SaveFolderOK   bool
	BackupFolderOK bool
	Session        SessionStatus
	BackupSize     int64
}

// ManagerOptions tunes the engine behavior shared by all targets.
type ManagerOptions struct {
	SlotPrefix    string
	Retry         RetryPolicy
	MirrorDeletes bool
	Ignore        PathFilter
	EventBuffer   int
}

// SessionManager owns every WatchSession and is the only object a
// presentation layer needs to talk to. All state lives here; there are no
// package-level globals.
type SessionManager struct {
	opts     ManagerOptions
	engine   *BackupEngine
	restorer *RestoreEngine
	logger   Logger
	bus      *EventBus

	mu      sync.Mutex
	targets map[string]*targetState
}

// targetState couples a target's applied config with its running session and
// the per-target lock that keeps the session's writes and on-demand sweeps
// from interleaving in the same backup root.
type targetState struct {
	cfg     TargetConfig
	session *WatchSession
	writeMu sync.Mutex
}

// NewSessionManager creates a manager with no targets applied yet.
func NewSessionManager(copier FileCopier, opts ManagerOptions, clock Clock, logger Logger) *SessionManager {
	bus := NewEventBus(opts.EventBuffer, clock)
	return &SessionManager{
		opts:     opts,
		engine:   NewBackupEngine(copier, opts.SlotPrefix, opts.Retry, clock, logger, bus),
		restorer: NewRestoreEngine(copier, logger, bus),
		logger:   logger,
		bus:      bus,
		targets:  make(map[string]*targetState),
	}
}

// Events returns the engine's best-effort status stream.
func (m *SessionManager) Events() <-chan StatusEvent { return m.bus.Events() }

// ApplyConfig reconciles running sessions against the given target set.
// Targets whose watch root changed get their session restarted against the
// new root; removed targets are stopped; targets with no usable save folder
// simply run no session. Configuration problems are reported, not raised.
func (m *SessionManager) ApplyConfig(cfgs map[string]TargetConfig) {
	m.applyConfig(cfgs, true)
}

// SetTargets records the target set without starting watch sessions, for
// one-shot operations that need target lookup but no watching. Sessions
// already running for removed or changed targets are still stopped.
func (m *SessionManager) SetTargets(cfgs map[string]TargetConfig) {
	m.applyConfig(cfgs, false)
}

func (m *SessionManager) applyConfig(cfgs map[string]TargetConfig, watch bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, st := range m.targets {
		if _, ok := cfgs[name]; ok {
			continue
		}
		if st.session != nil {
			st.session.Stop()
		}
		delete(m.targets, name)
	}

	for name, cfg := range cfgs {
		st, ok := m.targets[name]
		if !ok {
			st = &targetState{}
			m.targets[name] = st
		}
		changed := st.cfg.SaveFolder != cfg.SaveFolder || st.cfg.BackupFolder != cfg.BackupFolder
		st.cfg = cfg

		if st.session != nil && (changed || cfg.SaveFolder == "") {
			st.session.Stop()
			st.session = nil
		}
		if !watch {
			continue
		}
		if st.session != nil || cfg.SaveFolder == "" {
			if cfg.SaveFolder == "" {
				m.logger.Warn("target has no save folder configured", "target", name)
			}
			continue
		}

		sess := NewWatchSession(SessionConfig{
			Target:        name,
			WatchRoot:     cfg.SaveFolder,
			BackupRoot:    cfg.BackupFolder,
			MirrorDeletes: m.opts.MirrorDeletes,
			Ignore:        m.opts.Ignore,
		}, m.engine, &st.writeMu, m.logger, m.bus)
		st.session = sess

		if err := sess.Start(); err != nil {
			m.logger.Warn("target not watched", "target", name, "error", err)
			m.bus.Publish(name, "not watching: %v", err)
		}
	}
}

// BackupNow runs an on-demand full sweep for the target. It holds the
// target's write lock so it never interleaves with the session's own copies.
func (m *SessionManager) BackupNow(target string) ([]SlotEntry, error) {
	st, cfg, err := m.target(target)
	if err != nil {
		return nil, err
	}
	if cfg.SaveFolder == "" {
		return nil, fmt.Errorf("target %s has no save folder configured", target)
	}
	if err := os.MkdirAll(cfg.BackupFolder, 0755); err != nil {
		return nil, fmt.Errorf("creating backup folder: %w", err)
	}

	st.writeMu.Lock()
	entries, err := m.engine.BackupAll(cfg.SaveFolder, cfg.BackupFolder)
	st.writeMu.Unlock()
	if err != nil {
		return entries, err
	}
	m.bus.Publish(target, "manual backup captured %d slot(s)", len(entries))
	return entries, nil
}

// ListSnapshots returns the target's snapshots, newest first.
func (m *SessionManager) ListSnapshots(target string) ([]BackupSnapshot, error) {
	_, cfg, err := m.target(target)
	if err != nil {
		return nil, err
	}
	return ListSnapshots(cfg.BackupFolder)
}

// Restore copies the named snapshot back over the live slot.
func (m *SessionManager) Restore(target, snapshotName string) error {
	st, cfg, err := m.target(target)
	if err != nil {
		return err
	}
	if cfg.SaveFolder == "" {
		return fmt.Errorf("target %s has no save folder configured", target)
	}

	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	return m.restorer.Restore(cfg.BackupFolder, snapshotName, cfg.SaveFolder)
}

// Status reports every target's folders, session state and backup size.
func (m *SessionManager) Status() []TargetStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []TargetStatus
	for name, st := range m.targets {
		ts := TargetStatus{
			Name:         name,
			SaveFolder:   st.cfg.SaveFolder,
			BackupFolder: st.cfg.BackupFolder,
			Session:      StatusStopped,
		}
		if st.session != nil {
			ts.Session = st.session.Status()
		}
		ts.SaveFolderOK = dirExists(st.cfg.SaveFolder)
		ts.BackupFolderOK = dirExists(st.cfg.BackupFolder)
		if ts.BackupFolderOK {
			ts.BackupSize = TotalBackupSize(st.cfg.BackupFolder)
		}
		out = append(out, ts)
	}
	return out
}

// Shutdown stops every session and waits for their background work to
// finish. The process may exit safely once this returns.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*WatchSession, 0, len(m.targets))
	for _, st := range m.targets {
		if st.session != nil {
			sessions = append(sessions, st.session)
		}
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Stop()
	}
	m.logger.Info("all watch sessions stopped")
}

// target looks up a state and a copy of its applied config; the copy keeps
// callers from reading cfg concurrently with ApplyConfig.
func (m *SessionManager) target(name string) (*targetState, TargetConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.targets[name]
	if !ok {
		return nil, TargetConfig{}, fmt.Errorf("unknown target: %s", name)
	}
	return st, st.cfg, nil
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
