package project

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Subscription is an active filesystem watch on a single path.
// Dispose releases the underlying handle; calling it again is a no-op.
type Subscription interface {
	Path() string
	Dispose()
}

// WatchFunc starts watching path and calls onEvent for every event until
// the returned Subscription is disposed. onEvent runs on a goroutine owned
// by the subscription.
type WatchFunc func(path string, onEvent func(fsnotify.Event)) (Subscription, error)

// WatchFS returns a WatchFunc backed by one fsnotify.Watcher per path.
func WatchFS(logger *slog.Logger) WatchFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(path string, onEvent func(fsnotify.Event)) (Subscription, error) {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := w.Add(path); err != nil {
			_ = w.Close()
			return nil, err
		}

		sub := &fsSubscription{
			path:    path,
			watcher: w,
			done:    make(chan struct{}),
			logger:  logger,
		}
		go sub.loop(onEvent)
		return sub, nil
	}
}

type fsSubscription struct {
	path    string
	watcher *fsnotify.Watcher
	once    sync.Once
	done    chan struct{}
	logger  *slog.Logger
}

func (s *fsSubscription) Path() string { return s.path }

func (s *fsSubscription) Dispose() {
	s.once.Do(func() {
		close(s.done)
		_ = s.watcher.Close()
	})
}

func (s *fsSubscription) loop(onEvent func(fsnotify.Event)) {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			onEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "path", s.path, "error", err)
		}
	}
}
