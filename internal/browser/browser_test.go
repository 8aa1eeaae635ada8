package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/cookies"
)

type countCloser struct {
	mu     sync.Mutex
	calls  int
	err    error
	panics bool
}

func (c *countCloser) Close() error {
	c.mu.Lock()
	c.calls++
	panics := c.panics
	c.mu.Unlock()
	if panics {
		panic("target crashed")
	}
	return c.err
}

func (c *countCloser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeRuntime struct {
	rt       *Runtime
	page     *countCloser
	browser  *countCloser
	cleanups int
	prepared int
	resets   int
}

func newFakeRuntime(prepareErr, resetErr error) *fakeRuntime {
	f := &fakeRuntime{page: &countCloser{}, browser: &countCloser{}}
	f.rt = &Runtime{
		log:     zap.NewNop().Sugar(),
		pageRes: f.page,
		browser: f.browser,
		cleanup: func() { f.cleanups++ },
		prepare: func(context.Context, LaunchOptions) error {
			f.prepared++
			return prepareErr
		},
		reset: func(context.Context) error {
			f.resets++
			return resetErr
		},
	}
	return f
}

func (f *fakeRuntime) closedOnce(t *testing.T) {
	t.Helper()
	assert.Equal(t, 1, f.page.count())
	assert.Equal(t, 1, f.browser.count())
	assert.Equal(t, 1, f.cleanups)
}

func (f *fakeRuntime) open(t *testing.T) {
	t.Helper()
	assert.Zero(t, f.page.count())
	assert.Zero(t, f.browser.count())
	assert.Zero(t, f.cleanups)
}

func TestRuntimeClose_Idempotent(t *testing.T) {
	f := newFakeRuntime(nil, nil)

	f.rt.Close()
	f.rt.Close()
	f.rt.Close()

	f.closedOnce(t)
	assert.True(t, f.rt.Closed())
}

func TestRuntimeClose_Concurrent(t *testing.T) {
	f := newFakeRuntime(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.rt.Close()
		}()
	}
	wg.Wait()

	f.closedOnce(t)
}

func TestRuntimeClose_SwallowsErrors(t *testing.T) {
	f := newFakeRuntime(nil, nil)
	f.page.err = errors.New("target closed")
	f.browser.err = errors.New("connection reset")

	assert.NotPanics(t, f.rt.Close)
	f.closedOnce(t)
}

func TestRuntimeClose_PanicDoesNotSkipLaterSteps(t *testing.T) {
	f := newFakeRuntime(nil, nil)
	f.page.panics = true

	assert.NotPanics(t, f.rt.Close)
	f.closedOnce(t)

	g := newFakeRuntime(nil, nil)
	g.browser.panics = true

	assert.NotPanics(t, g.rt.Close)
	g.closedOnce(t)
}

func TestNotFound_MapsRodMiss(t *testing.T) {
	assert.ErrorIs(t, notFound(&rod.ErrElementNotFound{}), ErrNotFound)
	assert.ErrorIs(t, notFound(fmt.Errorf("scan: %w", &rod.ErrElementNotFound{})), ErrNotFound)

	err := notFound(errors.New("eval failed"))
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "eval failed")
}

func TestRodPage_EmptySelectorsFindNothing(t *testing.T) {
	p := &rodPage{waitTimeout: time.Second}

	_, err := p.WaitVisible(context.Background(), nil, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = p.QueryVisible(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLaunchRod_BoundedByContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	// a "browser" that never prints its DevTools URL
	bin := filepath.Join(t.TempDir(), "chromium")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 30\n"), 0755))

	cfg := config.Default()
	cfg.Browser.BinPath = bin
	m := NewManager(cfg, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	headless := true
	_, err := m.launchRod(ctx, LaunchOptions{UserAgent: "test-agent", Headless: &headless})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRuntimeClose_PartialRuntime(t *testing.T) {
	rt := &Runtime{log: zap.NewNop().Sugar()}
	assert.NotPanics(t, rt.Close)
	assert.NotPanics(t, rt.Close)
}

type fakeSetter struct {
	calls   [][]string
	rejectN int // batches larger than this are rejected
	bad     string
}

func (s *fakeSetter) SetCookies(params []*proto.NetworkCookieParam) error {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	s.calls = append(s.calls, names)

	if len(params) > s.rejectN {
		return errors.New("Invalid cookie fields")
	}
	for _, p := range params {
		if p.Name == s.bad {
			return errors.New("Invalid cookie fields")
		}
	}
	return nil
}

func params(n int) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, n)
	for i := range out {
		out[i] = &proto.NetworkCookieParam{Name: string(rune('a' + i)), Value: "v"}
	}
	return out
}

func TestInjectCookies_Bulk(t *testing.T) {
	s := &fakeSetter{rejectN: 100}

	applied, err := injectCookies(s, params(12), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, 12, applied)
	assert.Len(t, s.calls, 1)
}

func TestInjectCookies_ChunkFallback(t *testing.T) {
	s := &fakeSetter{rejectN: cookieChunkSize, bad: "g"}

	applied, err := injectCookies(s, params(12), zap.NewNop().Sugar())
	require.NoError(t, err)

	// bulk, then chunks a-e, f-j (contains g, rejected), k-l
	require.Len(t, s.calls, 4)
	assert.Len(t, s.calls[1], 5)
	assert.Len(t, s.calls[3], 2)
	assert.Equal(t, 7, applied)
}

func TestInjectCookies_AllRejected(t *testing.T) {
	s := &fakeSetter{rejectN: 0}

	applied, err := injectCookies(s, params(3), zap.NewNop().Sugar())
	assert.Error(t, err)
	assert.Zero(t, applied)
}

func TestInjectCookies_Empty(t *testing.T) {
	_, err := injectCookies(&fakeSetter{rejectN: 10}, nil, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestCookieParams(t *testing.T) {
	exp := time.Unix(1900000000, 0)
	got := cookieParams([]cookies.Prepared{{
		Name: "li_at", Value: "AQED", Domain: ".linkedin.com", Path: "/",
		Expires: exp, HTTPOnly: true, Secure: true, SameSite: cookies.SameSiteNone,
	}})

	require.Len(t, got, 1)
	assert.Equal(t, proto.NetworkCookieSameSiteNone, got[0].SameSite)
	assert.Equal(t, proto.TimeSinceEpoch(1900000000), got[0].Expires)
	assert.True(t, got[0].Secure)
	assert.True(t, got[0].HTTPOnly)
}

type launchRecorder struct {
	mu       sync.Mutex
	runtimes []*fakeRuntime
	err      error
	prepErr  error
	resetErr error
}

func (l *launchRecorder) launch(_ context.Context, opts LaunchOptions) (*Runtime, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	f := newFakeRuntime(l.prepErr, l.resetErr)
	f.rt.headless = opts.Headless != nil && *opts.Headless
	l.runtimes = append(l.runtimes, f)
	return f.rt, nil
}

func newTestManager(reuse bool, rec *launchRecorder) *Manager {
	return &Manager{
		cfg:    config.BrowserConfig{Reuse: reuse},
		wait:   time.Second,
		log:    zap.NewNop().Sugar(),
		rng:    rand.New(rand.NewSource(1)),
		launch: rec.launch,
	}
}

func TestManager_NoReuseClosesOnRelease(t *testing.T) {
	rec := &launchRecorder{}
	m := newTestManager(false, rec)

	lease, err := m.Acquire(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	lease.Close()
	lease.Close()

	require.Len(t, rec.runtimes, 1)
	rec.runtimes[0].closedOnce(t)
}

func TestManager_ReuseKeepsIdleRuntime(t *testing.T) {
	rec := &launchRecorder{}
	m := newTestManager(true, rec)
	ctx := context.Background()

	first, err := m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	first.Close()

	require.Len(t, rec.runtimes, 1)
	f := rec.runtimes[0]
	f.open(t)
	assert.Equal(t, 1, f.resets)

	second, err := m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	assert.Len(t, rec.runtimes, 1, "idle runtime is reused")
	assert.Equal(t, 1, f.prepared)

	second.Close()
	m.Close()
	f.closedOnce(t)
}

func TestManager_ConcurrentLeaseGetsFreshRuntime(t *testing.T) {
	rec := &launchRecorder{}
	m := newTestManager(true, rec)
	ctx := context.Background()

	a, err := m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	b, err := m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	require.Len(t, rec.runtimes, 2)

	b.Close()
	rec.runtimes[1].closedOnce(t)

	a.Close()
	rec.runtimes[0].open(t)

	m.Close()
	rec.runtimes[0].closedOnce(t)
}

func TestManager_InvalidatedLeaseIsTornDown(t *testing.T) {
	rec := &launchRecorder{}
	m := newTestManager(true, rec)

	lease, err := m.Acquire(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	lease.Invalidate()
	lease.Close()

	rec.runtimes[0].closedOnce(t)
	assert.Nil(t, m.idle)
}

func TestManager_FailedResetTearsDown(t *testing.T) {
	rec := &launchRecorder{resetErr: errors.New("page crashed")}
	m := newTestManager(true, rec)

	lease, err := m.Acquire(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	lease.Close()

	rec.runtimes[0].closedOnce(t)
	assert.Nil(t, m.idle)
}

func TestManager_FailedPrepareLaunchesFresh(t *testing.T) {
	rec := &launchRecorder{}
	m := newTestManager(true, rec)
	ctx := context.Background()

	lease, err := m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	lease.Close()

	rec.runtimes[0].rt.prepare = func(context.Context, LaunchOptions) error { return errors.New("stale") }

	lease, err = m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	require.Len(t, rec.runtimes, 2)
	rec.runtimes[0].closedOnce(t)

	lease.Close()
	m.Close()
	rec.runtimes[1].closedOnce(t)
}

func TestManager_LaunchError(t *testing.T) {
	rec := &launchRecorder{err: errors.New("chromium not found")}
	m := newTestManager(true, rec)

	_, err := m.Acquire(context.Background(), LaunchOptions{})
	assert.ErrorContains(t, err, "chromium not found")
	assert.False(t, m.busy)
}

func TestManager_HeadlessOverrideReplacesIdleRuntime(t *testing.T) {
	rec := &launchRecorder{}
	m := newTestManager(true, rec)
	ctx := context.Background()

	first, err := m.Acquire(ctx, LaunchOptions{})
	require.NoError(t, err)
	first.Close()

	headless := true
	second, err := m.Acquire(ctx, LaunchOptions{Headless: &headless})
	require.NoError(t, err)
	require.Len(t, rec.runtimes, 2)
	rec.runtimes[0].closedOnce(t)
	assert.True(t, rec.runtimes[1].rt.headless)

	second.Close()
	m.Close()
	rec.runtimes[1].closedOnce(t)
}

func TestManager_AcquireAfterClose(t *testing.T) {
	m := newTestManager(true, &launchRecorder{})
	m.Close()

	_, err := m.Acquire(context.Background(), LaunchOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}
