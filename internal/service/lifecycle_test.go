package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/testutil"
)

var errRefused = errors.New("connect: connection refused")

// fakeAPI simulates the server without any network.
type fakeAPI struct {
	alive        atomic.Bool
	version      atomic.Value
	aliveCalls   atomic.Int32
	versionCalls atomic.Int32
	shutdowns    atomic.Int32
}

func newFakeAPI(alive bool, version string) *fakeAPI {
	f := &fakeAPI{}
	f.alive.Store(alive)
	f.version.Store(version)
	return f
}

func (f *fakeAPI) CheckAlive(context.Context) error {
	f.aliveCalls.Add(1)
	if !f.alive.Load() {
		return errRefused
	}
	return nil
}

func (f *fakeAPI) Version(context.Context) (string, error) {
	f.versionCalls.Add(1)
	if !f.alive.Load() {
		return "", errRefused
	}
	return f.version.Load().(string), nil
}

func (f *fakeAPI) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.alive.Store(false)
	return nil
}

// fakeLauncher records starts and optionally brings the fake API up.
type fakeLauncher struct {
	mu      sync.Mutex
	calls   [][]string
	api     *fakeAPI
	err     error
	exitErr error
	bringUp bool
}

type fakeProcess struct{ exitErr error }

func (p fakeProcess) Pid() int    { return 4242 }
func (p fakeProcess) Wait() error { return p.exitErr }

func (l *fakeLauncher) Start(_ context.Context, name string, args ...string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, append([]string{name}, args...))
	if l.err != nil {
		return nil, l.err
	}
	if l.bringUp {
		l.api.alive.Store(true)
	}
	return fakeProcess{exitErr: l.exitErr}, nil
}

func (l *fakeLauncher) Calls() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.calls...)
}

type managerFixture struct {
	m        *Manager
	api      *fakeAPI
	launcher *fakeLauncher
	messages chan notifier.Message
}

func newManagerFixture(t *testing.T, api *fakeAPI, cfg ManagerConfig) *managerFixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	n := notifier.New(logger)
	ch := n.Subscribe()
	t.Cleanup(func() { n.Unsubscribe(ch) })

	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 200 * time.Millisecond
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 10 * time.Millisecond
	}

	l := &fakeLauncher{api: api}
	m := NewManager(api, cfg,
		WithLauncher(l),
		WithPlatform(Platform{OS: "linux"}),
		WithNotifier(n),
		WithLogger(logger))
	return &managerFixture{m: m, api: api, launcher: l, messages: ch}
}

func drain(ch chan notifier.Message) []notifier.Message {
	var out []notifier.Message
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from State
		ev   probeEvent
		want State
	}{
		{StateUnknown, probeStarted, StateChecking},
		{StateChecking, probeSucceeded, StateRunning},
		{StateChecking, probeFailed, StateNotRunning},
		{StateNotRunning, probeStarted, StateChecking},
		{StateRunning, probeStarted, StateChecking},
		{StateRunning, probeFailed, StateNotRunning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transition(tt.from, tt.ev), "%s + %d", tt.from, tt.ev)
	}
}

func TestManager_CheckAlive(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(false, SupportedVersion), ManagerConfig{Port: 8734})
	assert.Equal(t, StateUnknown, f.m.State())

	assert.False(t, f.m.CheckAlive(context.Background()))
	assert.Equal(t, StateNotRunning, f.m.State())

	f.api.alive.Store(true)
	assert.True(t, f.m.CheckAlive(context.Background()))
	assert.Equal(t, StateRunning, f.m.State())

	f.m.CheckAlive(context.Background())
	assert.Equal(t, int32(3), f.api.aliveCalls.Load(), "liveness is never cached")
}

func TestManager_CheckVersionMatch(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(true, SupportedVersion), ManagerConfig{})

	require.NoError(t, f.m.CheckVersion(context.Background()))
	require.NoError(t, f.m.CheckVersion(context.Background()))

	assert.Equal(t, SupportedVersion, f.m.Version())
	assert.Equal(t, int32(1), f.api.versionCalls.Load())
	assert.Empty(t, drain(f.messages))
}

func TestManager_CheckVersionMismatchWarnsOnce(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(true, "0.9.0"), ManagerConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.m.CheckVersion(context.Background())
		}()
	}
	wg.Wait()
	require.NoError(t, f.m.CheckVersion(context.Background()))

	msgs := drain(f.messages)
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.KindProtocolMismatch, msgs[0].Kind)
	assert.Contains(t, msgs[0].Text, "1.0.3")
	assert.Contains(t, msgs[0].Text, "0.9.0")
	assert.Equal(t, "0.9.0", f.m.Version())
}

func TestManager_CheckVersionSkippedWhileDown(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(false, "0.9.0"), ManagerConfig{})

	require.NoError(t, f.m.CheckVersion(context.Background()))
	assert.Zero(t, f.api.versionCalls.Load())
	assert.Empty(t, f.m.Version())

	f.api.alive.Store(true)
	require.NoError(t, f.m.CheckVersion(context.Background()))
	assert.Equal(t, int32(1), f.api.versionCalls.Load(), "checked once the server is up")
}

func TestManager_VersionRecheckedAfterRestart(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(true, "0.9.0"), ManagerConfig{})
	ctx := context.Background()

	require.NoError(t, f.m.CheckVersion(ctx))
	require.Len(t, drain(f.messages), 1)

	// Server goes away and comes back.
	f.api.alive.Store(false)
	assert.False(t, f.m.CheckAlive(ctx))
	assert.Empty(t, f.m.Version())
	f.api.alive.Store(true)

	require.NoError(t, f.m.CheckVersion(ctx))
	require.NoError(t, f.m.CheckVersion(ctx))
	assert.Equal(t, int32(2), f.api.versionCalls.Load())
	assert.Len(t, drain(f.messages), 1, "one warning per server run")
}

func TestManager_EnsureStartedDisabled(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(false, SupportedVersion), ManagerConfig{AutoStart: false, InstallPath: "/opt/lint"})

	require.NoError(t, f.m.EnsureStarted(context.Background()))
	assert.Empty(t, f.launcher.Calls())
	assert.Zero(t, f.api.aliveCalls.Load())
}

func TestManager_EnsureStartedAlreadyRunning(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(true, SupportedVersion), ManagerConfig{AutoStart: true, InstallPath: "/opt/lint", Port: 8734})

	require.NoError(t, f.m.EnsureStarted(context.Background()))
	assert.Empty(t, f.launcher.Calls())
	assert.Equal(t, StateRunning, f.m.State())
}

func TestManager_EnsureStartedLaunches(t *testing.T) {
	api := newFakeAPI(false, SupportedVersion)
	f := newManagerFixture(t, api, ManagerConfig{AutoStart: true, InstallPath: "/opt/lint", Port: 8734})
	f.launcher.bringUp = true

	require.NoError(t, f.m.EnsureStarted(context.Background()))

	assert.Equal(t, [][]string{{"/opt/lint/bin/plsql-lint-server", "8734"}}, f.launcher.Calls())
	assert.Equal(t, StateRunning, f.m.State())

	msgs := drain(f.messages)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Starting the PL/SQL Lint Server", msgs[0].Text)
}

func TestManager_EnsureStartedWindowsCommand(t *testing.T) {
	api := newFakeAPI(false, SupportedVersion)
	f := newManagerFixture(t, api, ManagerConfig{AutoStart: true, InstallPath: `C:\lint`, Port: 9000})
	f.launcher.bringUp = true
	f.m.platform = Platform{OS: "windows"}

	require.NoError(t, f.m.EnsureStarted(context.Background()))
	assert.Equal(t, [][]string{{`C:\lint\bin\plsql-lint-server.bat`, "9000"}}, f.launcher.Calls())
}

func TestManager_EnsureStartedServerNeverAnswers(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(false, SupportedVersion), ManagerConfig{AutoStart: true, InstallPath: "/opt/lint", Port: 8734})

	err := f.m.EnsureStarted(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notifier.ErrLaunchFailure)
	assert.Equal(t, StateNotRunning, f.m.State())

	var kinds []notifier.Kind
	for _, msg := range drain(f.messages) {
		kinds = append(kinds, msg.Kind)
	}
	assert.Contains(t, kinds, notifier.KindLaunchFailure)
}

func TestManager_EnsureStartedSpawnFails(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(false, SupportedVersion), ManagerConfig{AutoStart: true, InstallPath: "/opt/lint"})
	f.launcher.err = errors.New("exec: no such file or directory")

	err := f.m.EnsureStarted(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notifier.ErrLaunchFailure)
	assert.Contains(t, err.Error(), "/opt/lint/bin/plsql-lint-server")
}

func TestManager_EnsureStartedWithoutInstallPath(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(false, SupportedVersion), ManagerConfig{AutoStart: true})

	err := f.m.EnsureStarted(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notifier.ErrLaunchFailure)
	assert.Empty(t, f.launcher.Calls())

	msgs := drain(f.messages)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "has not been set")
}

func TestManager_ProcessExitErrorIsReported(t *testing.T) {
	api := newFakeAPI(false, SupportedVersion)
	f := newManagerFixture(t, api, ManagerConfig{AutoStart: true, InstallPath: "/opt/lint"})
	f.launcher.bringUp = true
	f.launcher.exitErr = errors.New("exit status 1")

	require.NoError(t, f.m.EnsureStarted(context.Background()))

	require.Eventually(t, func() bool {
		for _, msg := range drain(f.messages) {
			if msg.Kind == notifier.KindLaunchFailure {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestManager_Shutdown(t *testing.T) {
	f := newManagerFixture(t, newFakeAPI(true, SupportedVersion), ManagerConfig{})

	f.m.Shutdown(context.Background())
	assert.Equal(t, int32(1), f.api.shutdowns.Load())
	assert.Equal(t, StateNotRunning, f.m.State())

	// Not running: no directive is sent.
	f.m.Shutdown(context.Background())
	assert.Equal(t, int32(1), f.api.shutdowns.Load())
}
