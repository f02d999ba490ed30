package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
)

// State is the lint server state as last observed by the Manager.
type State int

const (
	StateUnknown State = iota
	StateChecking
	StateRunning
	StateNotRunning
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateRunning:
		return "running"
	case StateNotRunning:
		return "not running"
	default:
		return "unknown"
	}
}

// probeEvent drives State transitions.
type probeEvent int

const (
	probeStarted probeEvent = iota
	probeSucceeded
	probeFailed
)

// transition is the only place State changes are decided.
//
//	any        --probeStarted-->   Checking
//	any        --probeSucceeded--> Running
//	any        --probeFailed-->    NotRunning
//
// Results are accepted from any state because concurrent probes may
// overlap; the latest result wins.
func transition(_ State, ev probeEvent) State {
	switch ev {
	case probeStarted:
		return StateChecking
	case probeSucceeded:
		return StateRunning
	default:
		return StateNotRunning
	}
}

// API is the subset of the server protocol the Manager needs.
type API interface {
	CheckAlive(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Shutdown(ctx context.Context) error
}

// Default startup polling.
const (
	DefaultStartupTimeout = 10 * time.Second
	DefaultRetryInterval  = 250 * time.Millisecond
)

// ManagerConfig holds the host settings the Manager consumes.
type ManagerConfig struct {
	Port             int
	InstallPath      string
	AutoStart        bool
	SupportedVersion string        // defaults to SupportedVersion
	StartupTimeout   time.Duration // how long a launched server may take to answer
	RetryInterval    time.Duration // liveness polling interval while starting
}

// Manager tracks whether the lint server is reachable, launches it when
// configured to and checks its protocol version once per server run.
type Manager struct {
	api      API
	cfg      ManagerConfig
	launcher Launcher
	platform Platform
	notify   *notifier.Notifier
	logger   *slog.Logger
	versions singleflight.Group

	mu      sync.Mutex
	state   State
	alive   bool // result of the last completed probe
	version string
	checked bool // version checked for the current server run
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLauncher replaces the os/exec launcher.
func WithLauncher(l Launcher) ManagerOption {
	return func(m *Manager) { m.launcher = l }
}

// WithPlatform overrides the platform used to build the server command.
func WithPlatform(p Platform) ManagerOption {
	return func(m *Manager) { m.platform = p }
}

// WithNotifier sets where warnings are reported.
func WithNotifier(n *notifier.Notifier) ManagerOption {
	return func(m *Manager) { m.notify = n }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager for the server reachable through api.
func NewManager(api API, cfg ManagerConfig, opts ...ManagerOption) *Manager {
	if cfg.SupportedVersion == "" {
		cfg.SupportedVersion = SupportedVersion
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	m := &Manager{
		api:      api,
		cfg:      cfg,
		launcher: ExecLauncher{},
		platform: CurrentPlatform(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.notify == nil {
		m.notify = notifier.New(m.logger)
	}
	return m
}

// State returns the last observed server state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Version returns the cached server version, or "" if not yet known for
// the current server run.
func (m *Manager) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *Manager) apply(ev probeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasAlive := m.alive
	m.state = transition(m.state, ev)

	switch ev {
	case probeSucceeded:
		m.alive = true
	case probeFailed:
		// A server seen running and now gone counts as a new run: its
		// version is checked again once it comes back.
		if m.alive || m.checked {
			m.version = ""
			m.checked = false
		}
		m.alive = false
	}
	if ev != probeStarted && wasAlive != m.alive {
		m.logger.Debug("lint server state changed", "state", m.state.String())
	}
}

// CheckAlive probes the server. It never caches the result.
func (m *Manager) CheckAlive(ctx context.Context) bool {
	m.apply(probeStarted)
	if err := m.api.CheckAlive(ctx); err != nil {
		m.apply(probeFailed)
		m.logger.Debug("lint server not reachable", "port", m.cfg.Port, "error", err)
		return false
	}
	m.apply(probeSucceeded)
	return true
}

// CheckVersion fetches and compares the server version once per server
// run. A mismatch is reported as a warning and does not block linting.
// Concurrent callers share one request.
func (m *Manager) CheckVersion(ctx context.Context) error {
	if m.versionChecked() {
		return nil
	}

	_, err, _ := m.versions.Do("version", func() (any, error) {
		if m.versionChecked() {
			return nil, nil
		}
		if !m.CheckAlive(ctx) {
			return nil, nil
		}

		version, err := m.api.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("check lint server version: %w", err)
		}

		m.mu.Lock()
		m.version = version
		m.checked = true
		m.mu.Unlock()

		if version != m.cfg.SupportedVersion {
			m.notify.Warn(&notifier.Error{
				Kind: notifier.KindProtocolMismatch,
				Op:   "version check",
				Err: fmt.Errorf("this client supports version %s of the PL/SQL Lint Server, the running server is version %s",
					m.cfg.SupportedVersion, version),
			})
		}
		return nil, nil
	})
	return err
}

func (m *Manager) versionChecked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checked
}

// EnsureStarted launches the server when auto-start is enabled and it is
// not already running, then waits for it to answer. Failures are reported
// to the notifier as KindLaunchFailure and also returned.
func (m *Manager) EnsureStarted(ctx context.Context) error {
	if !m.cfg.AutoStart {
		return nil
	}
	if m.cfg.InstallPath == "" {
		return m.launchFailed("", errors.New("location of the PL/SQL Lint server has not been set"))
	}
	if m.CheckAlive(ctx) {
		return nil
	}

	command := m.platform.ServerCommand(m.cfg.InstallPath)
	m.notify.Info("Starting the PL/SQL Lint Server")
	m.logger.Info("starting lint server", "command", command, "port", m.cfg.Port)

	proc, err := m.launcher.Start(ctx, command, strconv.Itoa(m.cfg.Port))
	if err != nil {
		return m.launchFailed(command, err)
	}
	go m.watchProcess(command, proc)

	backoff := retry.WithMaxDuration(m.cfg.StartupTimeout, retry.NewConstant(m.cfg.RetryInterval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if m.CheckAlive(ctx) {
			return nil
		}
		return retry.RetryableError(notifier.ErrServiceUnreachable)
	})
	if err != nil {
		return m.launchFailed(command, fmt.Errorf("server did not answer on port %d within %s: %w", m.cfg.Port, m.cfg.StartupTimeout, err))
	}

	m.logger.Info("lint server started", "pid", proc.Pid(), "port", m.cfg.Port)
	return nil
}

func (m *Manager) watchProcess(command string, proc Process) {
	if err := proc.Wait(); err != nil {
		m.notify.Warn(&notifier.Error{Kind: notifier.KindLaunchFailure, Op: "lint server exited", Path: command, Err: err})
		return
	}
	m.logger.Debug("lint server process exited", "command", command)
}

func (m *Manager) launchFailed(command string, err error) error {
	lerr := &notifier.Error{Kind: notifier.KindLaunchFailure, Op: "start lint server", Path: command, Err: err}
	m.notify.Warn(lerr)
	return lerr
}

// Shutdown asks a running server to stop, best effort. It does not wait
// for the process to exit; the response, if any, is ignored.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.State() != StateRunning && !m.CheckAlive(ctx) {
		return
	}

	if err := m.api.Shutdown(ctx); err != nil {
		m.logger.Debug("shutdown request ended without response", "error", err)
	}
	m.apply(probeFailed)
	m.logger.Info("lint server shutdown requested", "port", m.cfg.Port)
}
