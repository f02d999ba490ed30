package project

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/oraclelint/internal/config"
	"github.com/leapstack-labs/oraclelint/internal/notifier"
)

// rootWatch holds the subscriptions of one project root.
type rootWatch struct {
	dir  Subscription
	file Subscription // nil while the root has no config file

	// The config is loaded but its file watch failed; the directory
	// watch alone reports its changes.
	unwatched bool
}

// Registry owns the filesystem subscriptions for the open project roots
// and keeps a Store synchronized with their config files.
type Registry struct {
	store  *Store
	watch  WatchFunc
	notify *notifier.Notifier
	logger *slog.Logger

	mu    sync.Mutex
	roots map[string]*rootWatch
}

// Option configures a Registry.
type Option func(*Registry)

// WithWatchFunc replaces the fsnotify-backed watcher.
func WithWatchFunc(fn WatchFunc) Option {
	return func(r *Registry) { r.watch = fn }
}

// WithNotifier sets where config parse warnings are reported.
func WithNotifier(n *notifier.Notifier) Option {
	return func(r *Registry) { r.notify = n }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a Registry writing into store.
func NewRegistry(store *Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		roots: make(map[string]*rootWatch),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.notify == nil {
		r.notify = notifier.New(r.logger)
	}
	if r.watch == nil {
		r.watch = WatchFS(r.logger)
	}
	return r
}

// Store returns the store the registry writes into.
func (r *Registry) Store() *Store {
	return r.store
}

// Sync reconciles the watched roots with roots. New roots are watched and
// their config loaded, roots no longer present are released and evicted,
// and roots whose config file disappeared lose their file watch and
// config. Calling Sync again with the same roots changes nothing.
//
// Roots that cannot be watched are skipped and reported in the returned
// error; the remaining roots are still synchronized.
func (r *Registry) Sync(roots []string) error {
	want := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		want[cleanRoot(root)] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, root := range sortedKeys(want) {
		if _, ok := r.roots[root]; ok {
			r.syncRootLocked(root)
			continue
		}
		if err := r.addRootLocked(root); err != nil {
			errs = append(errs, err)
		}
	}

	for root := range r.roots {
		if _, ok := want[root]; !ok {
			r.removeRootLocked(root)
		}
	}

	return errors.Join(errs...)
}

// DisposeAll releases every subscription and clears the store.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for root, rw := range r.roots {
		rw.dispose()
		delete(r.roots, root)
	}
	r.store.Clear()
	r.logger.Debug("disposed all project watches")
}

// Subscriptions returns the paths of all active subscriptions, sorted.
func (r *Registry) Subscriptions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var paths []string
	for _, rw := range r.roots {
		paths = append(paths, rw.dir.Path())
		if rw.file != nil {
			paths = append(paths, rw.file.Path())
		}
	}
	sort.Strings(paths)
	return paths
}

// Active returns the number of active subscriptions.
func (r *Registry) Active() int {
	return len(r.Subscriptions())
}

func (r *Registry) addRootLocked(root string) error {
	sub, err := r.watch(root, func(ev fsnotify.Event) { r.handleDirEvent(root, ev) })
	if err != nil {
		return fmt.Errorf("watch project %s: %w", root, err)
	}

	r.store.Track(root)
	r.roots[root] = &rootWatch{dir: sub}
	r.logger.Debug("watching project", "root", root)

	r.syncRootLocked(root)
	return nil
}

func (r *Registry) removeRootLocked(root string) {
	rw, ok := r.roots[root]
	if !ok {
		return
	}
	rw.dispose()
	delete(r.roots, root)
	r.store.Untrack(root)
	r.logger.Debug("stopped watching project", "root", root)
}

// syncRootLocked aligns one root's file watch and config with the
// presence of its config file.
func (r *Registry) syncRootLocked(root string) {
	rw, ok := r.roots[root]
	if !ok {
		return
	}

	exists := config.Exists(root)
	switch {
	case exists && rw.file == nil && !rw.unwatched:
		r.loadLocked(root)
		path := config.Path(root)
		sub, err := r.watch(path, func(ev fsnotify.Event) { r.handleFileEvent(root, ev) })
		if err != nil {
			r.logger.Warn("failed to watch config file", "path", path, "error", err)
			rw.unwatched = true
			return
		}
		rw.file = sub

	case !exists && (rw.file != nil || rw.unwatched):
		rw.disposeFile()
		r.store.Remove(root)
		r.logger.Debug("config file removed", "root", root)

	case !exists:
		if _, ok := r.store.Get(root); ok {
			r.store.Remove(root)
		}
	}
}

// loadLocked reads the root's config into the store. A parse failure is
// reported and the previous config kept.
func (r *Registry) loadLocked(root string) {
	cfg, err := config.LoadFromDir(root)
	switch {
	case err == nil && cfg == nil:
		return
	case errors.Is(err, fs.ErrNotExist):
		return
	case err != nil:
		r.notify.Warn(err)
		if _, ok := r.store.Get(root); !ok {
			r.store.Set(root, &config.ProjectConfig{})
		}
		return
	}

	r.store.Set(root, cfg)
	r.logger.Debug("loaded project config", "root", root, "filters", len(cfg.Filters))
}

func (r *Registry) handleDirEvent(root string, ev fsnotify.Event) {
	isConfig := filepath.Clean(ev.Name) == config.Path(root)
	structural := ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
	if !isConfig && !structural {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rw, ok := r.roots[root]
	if !ok {
		return
	}

	if isConfig && (rw.file != nil || rw.unwatched) {
		switch {
		case ev.Op&fsnotify.Create != 0:
			// Replaced in place (e.g. atomic save): the old file watch
			// points at a dead inode.
			rw.disposeFile()
		case ev.Op&fsnotify.Write != 0:
			// The file watch may have been installed after this write.
			r.loadLocked(root)
			return
		}
	}
	r.syncRootLocked(root)
}

func (r *Registry) handleFileEvent(root string, ev fsnotify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rw, ok := r.roots[root]
	if !ok || rw.file == nil {
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		rw.disposeFile()
		r.syncRootLocked(root)
	case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
		r.loadLocked(root)
	}
}

func (rw *rootWatch) disposeFile() {
	if rw.file != nil {
		rw.file.Dispose()
		rw.file = nil
	}
	rw.unwatched = false
}

func (rw *rootWatch) dispose() {
	rw.disposeFile()
	rw.dir.Dispose()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
