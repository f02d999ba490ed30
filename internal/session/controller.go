// Package session ties project config tracking and the lint server
// lifecycle together behind the operations an editor front end calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/project"
	"github.com/leapstack-labs/oraclelint/internal/service"
)

// ErrClosed is returned by operations on a deactivated Controller.
var ErrClosed = errors.New("lint session closed")

// Config holds the host settings a Controller consumes.
type Config struct {
	Port           int
	InstallPath    string
	StartServer    bool
	LintOnChange   bool
	StopOnExit     bool
	ProbeTimeout   time.Duration
	StartupTimeout time.Duration
	LintTimeout    time.Duration
}

// Controller is the top-level lint session. It owns the config registry
// and the server manager for as long as it is active.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	notify   *notifier.Notifier
	store    *project.Store
	registry *project.Registry
	client   *service.Client
	manager  *service.Manager

	watch    project.WatchFunc
	launcher service.Launcher
	baseURL  string

	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithNotifier sets where user-facing messages are sent.
func WithNotifier(n *notifier.Notifier) Option {
	return func(c *Controller) { c.notify = n }
}

// WithWatchFunc replaces the fsnotify-backed watcher of the registry.
func WithWatchFunc(fn project.WatchFunc) Option {
	return func(c *Controller) { c.watch = fn }
}

// WithLauncher replaces the process launcher of the server manager.
func WithLauncher(l service.Launcher) Option {
	return func(c *Controller) { c.launcher = l }
}

// WithBaseURL points the client at a server other than localhost:<port>.
func WithBaseURL(url string) Option {
	return func(c *Controller) { c.baseURL = url }
}

// New builds a Controller and its collaborators. Nothing is watched or
// started until Activate is called.
func New(cfg Config, opts ...Option) *Controller {
	c := &Controller{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.notify == nil {
		c.notify = notifier.New(c.logger)
	}
	if c.baseURL == "" {
		c.baseURL = service.BaseURL(cfg.Port)
	}

	c.store = project.NewStore()

	regOpts := []project.Option{
		project.WithNotifier(c.notify),
		project.WithLogger(c.logger.With("component", "registry")),
	}
	if c.watch != nil {
		regOpts = append(regOpts, project.WithWatchFunc(c.watch))
	}
	c.registry = project.NewRegistry(c.store, regOpts...)

	c.client = service.NewClient(c.baseURL,
		service.WithTimeouts(cfg.ProbeTimeout, cfg.LintTimeout),
		service.WithClientLogger(c.logger.With("component", "client")))

	mgrOpts := []service.ManagerOption{
		service.WithNotifier(c.notify),
		service.WithLogger(c.logger.With("component", "manager")),
	}
	if c.launcher != nil {
		mgrOpts = append(mgrOpts, service.WithLauncher(c.launcher))
	}
	c.manager = service.NewManager(c.client, service.ManagerConfig{
		Port:           cfg.Port,
		InstallPath:    cfg.InstallPath,
		AutoStart:      cfg.StartServer,
		StartupTimeout: cfg.StartupTimeout,
	}, mgrOpts...)

	return c
}

// Notifier returns the notifier user-facing messages are broadcast on.
func (c *Controller) Notifier() *notifier.Notifier { return c.notify }

// Store returns the project config store.
func (c *Controller) Store() *project.Store { return c.store }

// Registry returns the project watch registry.
func (c *Controller) Registry() *project.Registry { return c.registry }

// Manager returns the lint server manager.
func (c *Controller) Manager() *service.Manager { return c.manager }

// LintOnChange reports whether front ends should lint on every edit.
func (c *Controller) LintOnChange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.LintOnChange
}

// SetLintOnChange switches linting on every edit on or off.
func (c *Controller) SetLintOnChange(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.LintOnChange = enabled
}

// SetStopOnExit sets whether Deactivate asks the server to shut down.
func (c *Controller) SetStopOnExit(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.StopOnExit = enabled
}

// Activate starts watching roots and, when auto-start is enabled, starts
// the lint server. A server that fails to start is reported on the
// notifier; only a failure to watch the roots is returned.
func (c *Controller) Activate(ctx context.Context, roots []string) error {
	if c.isClosed() {
		return ErrClosed
	}

	err := c.registry.Sync(roots)
	if err != nil {
		c.notify.Warn(err)
	}
	c.logger.Info("lint session activated", "roots", len(roots), "configs", c.store.Len())

	if c.cfg.StartServer {
		if serr := c.manager.EnsureStarted(ctx); serr != nil {
			c.logger.Debug("lint server not started", "error", serr)
		}
	}
	return err
}

// SetRoots re-synchronizes the watched roots after the workspace changed.
func (c *Controller) SetRoots(roots []string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.registry.Sync(roots); err != nil {
		c.notify.Warn(err)
		return err
	}
	return nil
}

// Lint lints content as the file at path. When the server is not running
// the result is empty and no lint request is made. A malformed response
// is returned as an error matching notifier.ErrMalformedResponse;
// transport errors during the lint request are returned as well.
func (c *Controller) Lint(ctx context.Context, path, content string) ([]service.Diagnostic, error) {
	if !c.track() {
		return nil, ErrClosed
	}

	// Not awaited: the first lint of a server run may finish before the
	// version warning is raised.
	go func() {
		defer c.pending.Done()
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.versionTimeout())
		defer cancel()
		if err := c.manager.CheckVersion(vctx); err != nil {
			c.logger.Debug("version check failed", "error", err)
		}
	}()

	if !c.manager.CheckAlive(ctx) {
		return []service.Diagnostic{}, nil
	}

	diags, err := c.client.LintFile(ctx, service.LintRequest{
		Path:    path,
		Content: content,
		Filters: c.store.FiltersFor(path),
	})
	if err != nil {
		return nil, fmt.Errorf("lint session: %w", err)
	}
	return diags, nil
}

// Deactivate releases every watch and, when configured, asks the server
// to shut down. Calling it more than once is a no-op.
func (c *Controller) Deactivate(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.cfg.StopOnExit
	c.mu.Unlock()

	c.pending.Wait()
	c.registry.DisposeAll()
	if stop {
		c.manager.Shutdown(ctx)
	}
	c.logger.Info("lint session deactivated")
}

// track registers a background version check unless the session is
// closed.
func (c *Controller) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.pending.Add(1)
	return true
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) versionTimeout() time.Duration {
	// Liveness probe plus version fetch.
	if c.cfg.ProbeTimeout > 0 {
		return 2 * c.cfg.ProbeTimeout
	}
	return 2 * service.DefaultProbeTimeout
}
