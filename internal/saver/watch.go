package saver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// SessionStatus is the lifecycle state of a WatchSession.
type SessionStatus int

const (
	StatusStopped SessionStatus = iota
	StatusStarting
	StatusActive
	StatusFailed
)

func (s SessionStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusActive:
		return "active"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PathFilter decides whether a path (relative to the watch root) should be
// excluded from event handling.
type PathFilter interface {
	Match(relativePath string) bool
}

// SessionConfig is the immutable configuration a WatchSession is started with.
type SessionConfig struct {
	Target        string
	WatchRoot     string
	BackupRoot    string
	MirrorDeletes bool
	Ignore        PathFilter // optional
}

/*
WatchSession owns one filesystem watch scoped to a single watch root.
Subscriptions are per-directory: the root and every existing subdirectory are
added individually, and newly created subdirectories are added at runtime so
a game can create fresh slot directories mid-session. Notification delivery
and file copying run on separate goroutines; copies are serialized so two
events never write the same backup path concurrently.
*/
type WatchSession struct {
	cfg     SessionConfig
	engine  *BackupEngine
	logger  Logger
	bus     *EventBus
	writeMu *sync.Mutex // serializes backup-root writes with on-demand sweeps

	mu      sync.Mutex
	status  SessionStatus
	watched map[string]struct{}
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	jobs    chan FsEvent
	wg      sync.WaitGroup
}

// NewWatchSession creates a stopped session. writeMu is the per-target lock
// shared with on-demand backup operations against the same backup root.
func NewWatchSession(cfg SessionConfig, engine *BackupEngine, writeMu *sync.Mutex, logger Logger, bus *EventBus) *WatchSession {
	return &WatchSession{
		cfg:     cfg,
		engine:  engine,
		writeMu: writeMu,
		logger:  logger,
		bus:     bus,
		watched: make(map[string]struct{}),
	}
}

// Start subscribes to the watch root and all existing subdirectories and
// begins dispatching events. A missing watch root or a failed subscription
// sets the status to Failed and returns the error; it never panics.
func (s *WatchSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive || s.status == StatusStarting {
		return fmt.Errorf("session for %s already running", s.cfg.Target)
	}
	s.status = StatusStarting

	info, err := os.Stat(s.cfg.WatchRoot)
	if err != nil || !info.IsDir() {
		s.status = StatusFailed
		return fmt.Errorf("watch root unavailable: %s", s.cfg.WatchRoot)
	}
	if err := os.MkdirAll(s.cfg.BackupRoot, 0755); err != nil {
		s.status = StatusFailed
		return fmt.Errorf("creating backup root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.status = StatusFailed
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Subscribe per directory rather than recursively so later additions
	// can be made one directory at a time.
	err = filepath.WalkDir(s.cfg.WatchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("subscribing to %s: %w", path, err)
		}
		s.watched[path] = struct{}{}
		return nil
	})
	if err != nil {
		watcher.Close()
		s.status = StatusFailed
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watcher = watcher
	s.cancel = cancel
	s.jobs = make(chan FsEvent, 128)

	s.wg.Add(2)
	go s.deliverLoop(ctx)
	go s.copyWorker(ctx)

	s.status = StatusActive
	s.logger.Info("watch session started", "target", s.cfg.Target, "root", s.cfg.WatchRoot)
	s.bus.Publish(s.cfg.Target, "watching %s", s.cfg.WatchRoot)
	return nil
}

// Stop signals the background goroutines to stop accepting events and waits
// for any in-flight copy to finish before returning.
func (s *WatchSession) Stop() {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	watcher := s.watcher
	s.mu.Unlock()

	cancel()
	watcher.Close()
	s.wg.Wait()

	s.mu.Lock()
	s.status = StatusStopped
	s.watcher = nil
	s.mu.Unlock()

	s.logger.Info("watch session stopped", "target", s.cfg.Target)
	s.bus.Publish(s.cfg.Target, "stopped watching %s", s.cfg.WatchRoot)
}

// Status returns the session's current lifecycle state.
func (s *WatchSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// WatchedPaths returns the set of directories currently subscribed.
func (s *WatchSession) WatchedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.watched))
	for p := range s.watched {
		paths = append(paths, p)
	}
	return paths
}

// deliverLoop receives raw notifications and normalizes them. Long copy work
// is handed to the copy worker so delivery is never blocked by I/O.
func (s *WatchSession) deliverLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.dispatch(ctx, ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "target", s.cfg.Target, "error", err)
		}
	}
}

// dispatch converts one fsnotify event into the engine's event model.
func (s *WatchSession) dispatch(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			s.addDirectory(ctx, ev.Name)
			return
		}
		s.enqueue(ctx, FsEvent{Op: OpCreated, Path: ev.Name})
	case ev.Op&fsnotify.Write != 0:
		s.enqueue(ctx, FsEvent{Op: OpModified, Path: ev.Name})
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		s.enqueue(ctx, FsEvent{Op: OpDeleted, Path: ev.Name})
	}
}

// addDirectory subscribes a newly created directory and backfills events for
// anything that appeared inside it before the subscription took effect.
func (s *WatchSession) addDirectory(ctx context.Context, dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := s.watcher.Add(path); addErr != nil {
				s.logger.Warn("cannot subscribe to new directory", "path", path, "error", addErr)
				return fs.SkipDir
			}
			s.mu.Lock()
			s.watched[path] = struct{}{}
			s.mu.Unlock()
			return nil
		}
		s.enqueue(ctx, FsEvent{Op: OpCreated, Path: path})
		return nil
	})
	if err == nil {
		s.logger.Info("new directory watched", "target", s.cfg.Target, "path", dir)
	}
}

func (s *WatchSession) enqueue(ctx context.Context, ev FsEvent) {
	select {
	case s.jobs <- ev:
	case <-ctx.Done():
	}
}

// copyWorker executes backup copies one at a time, in arrival order.
func (s *WatchSession) copyWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.jobs:
			s.handle(ev)
		}
	}
}

func (s *WatchSession) handle(ev FsEvent) {
	rel, err := filepath.Rel(s.cfg.WatchRoot, ev.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if s.cfg.Ignore != nil && s.cfg.Ignore.Match(rel) {
		s.logger.Debug("event ignored by pattern", "path", ev.Path)
		return
	}

	switch ev.Op {
	case OpCreated, OpModified:
		s.writeMu.Lock()
		_, err := s.engine.BackupPath(s.cfg.WatchRoot, s.cfg.BackupRoot, ev.Path)
		s.writeMu.Unlock()
		if err != nil {
			// Non-fatal: the session stays active and the next event gets
			// its own attempt.
			s.logger.Error("event backup failed", "target", s.cfg.Target, "path", ev.Path, "error", err)
			s.bus.Publish(s.cfg.Target, "backup of %s failed: %v", rel, err)
		}
	case OpDeleted:
		s.handleDelete(rel)
	}
}

// handleDelete mirrors a source deletion into the backup root when the
// session is configured to do so. Mirroring is off by default: it erases
// recovery history, which is rarely what a save-protection tool should do.
func (s *WatchSession) handleDelete(rel string) {
	if !s.cfg.MirrorDeletes {
		s.logger.Debug("source deleted, backup retained", "path", rel)
		return
	}
	first := rel
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		first = rel[:i]
	}
	if !strings.HasPrefix(first, s.engine.slotPrefix) {
		return
	}
	target := filepath.Join(s.cfg.BackupRoot, rel)

	s.writeMu.Lock()
	err := os.RemoveAll(target)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Error("mirrored delete failed", "path", target, "error", err)
		return
	}
	s.logger.Info("mirrored delete", "target", s.cfg.Target, "path", rel)
	s.bus.Publish(s.cfg.Target, "removed backup of deleted %s", rel)
}
