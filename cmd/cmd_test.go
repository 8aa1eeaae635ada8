package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/yourusername/linkedin-connector/internal/automation"
	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/connection"
	"github.com/yourusername/linkedin-connector/internal/cookies"
	"github.com/yourusername/linkedin-connector/internal/logger"
	"github.com/yourusername/linkedin-connector/internal/report"
	"github.com/yourusername/linkedin-connector/internal/stealth"
	"github.com/yourusername/linkedin-connector/internal/storage"
)

const batchYAML = `
mode: connect_or_follow
note_template: "Hi {{name}}, I enjoyed your talk on {{topic}}."
tasks:
  - profile_url: https://www.linkedin.com/in/jane-doe/?trk=abc
    vars:
      name: Jane
      topic: Go tooling
  - profile_url: https://www.linkedin.com/in/john-roe
    mode: follow
  - profile_url: https://www.linkedin.com/in/max-mustermann
    note: "Custom note"
`

func TestParseBatch(t *testing.T) {
	items, err := parseBatch([]byte(batchYAML))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "Hi Jane, I enjoyed your talk on Go tooling.", items[0].Note)
	assert.Equal(t, connection.ModeConnectOrFollow, items[0].Mode)
	assert.Equal(t, connection.ModeFollow, items[1].Mode)
	assert.Equal(t, "Custom note", items[2].Note)
}

func TestParseBatch_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no tasks", "mode: connect\n", "no tasks"},
		{"missing url", "tasks:\n  - note: hi\n", "profile_url is required"},
		{"bad mode", "tasks:\n  - profile_url: https://www.linkedin.com/in/x\n    mode: endorse\n", "invalid mode"},
		{"bad yaml", "tasks: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBatch([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveSession(t *testing.T) {
	dir := t.TempDir()
	cookieFile := filepath.Join(dir, "cookies.json")
	require.NoError(t, os.WriteFile(cookieFile, []byte("  [{\"name\":\"li_at\",\"value\":\"x\"}]\n"), 0600))

	t.Setenv("LI_AT", "env-token")

	s, err := resolveSession(config.SessionConfig{PrimaryToken: "cfg-token", UserAgent: "cfg-ua"}, sessionFlags{cookiesFile: cookieFile})
	require.NoError(t, err)
	assert.Equal(t, "env-token", s.PrimaryToken)
	assert.Equal(t, "cfg-ua", s.UserAgent)
	assert.Equal(t, `[{"name":"li_at","value":"x"}]`, s.FullCookies)

	s, err = resolveSession(config.SessionConfig{PrimaryToken: "cfg-token"}, sessionFlags{token: "flag-token"})
	require.NoError(t, err)
	assert.Equal(t, "flag-token", s.PrimaryToken)
	assert.Empty(t, s.FullCookies)

	_, err = resolveSession(config.SessionConfig{CookiesFile: filepath.Join(dir, "missing.json")}, sessionFlags{})
	assert.Error(t, err)
}

type fakeRunner struct {
	results  map[string]report.ActionResult
	requests []automation.Request
	after    func()
}

func (r *fakeRunner) Run(_ context.Context, req automation.Request) report.ActionResult {
	r.requests = append(r.requests, req)
	if r.after != nil {
		r.after()
	}
	if res, ok := r.results[connection.CleanProfileURL(req.ProfileURL)]; ok {
		return res
	}
	return report.ActionResult{Success: true, Status: report.StatusPending, Action: report.ActionConnect, Message: "connection request sent"}
}

func newTestBatcher(t *testing.T, runner requestRunner) *batcher {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Batch.DailyLimit = 10

	return &batcher{
		cfg:     cfg,
		runner:  runner,
		store:   store,
		limiter: rate.NewLimiter(rate.Inf, 1),
		human: stealth.New(
			stealth.WithRand(rand.New(rand.NewSource(3))),
			stealth.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		),
		session:       cookies.Session{PrimaryToken: "token"},
		skipProcessed: true,
		log:           logger.Nop(),
	}
}

func items(urls ...string) []batchItem {
	out := make([]batchItem, len(urls))
	for i, u := range urls {
		out[i] = batchItem{ProfileURL: u, Mode: connection.ModeConnect}
	}
	return out
}

func TestBatch_RunsAndRecords(t *testing.T) {
	runner := &fakeRunner{results: map[string]report.ActionResult{
		"https://www.linkedin.com/in/b": {Status: report.StatusFailed, Action: report.ActionNone, Message: "could not find connect control"},
	}}
	b := newTestBatcher(t, runner)
	var out bytes.Buffer

	summary, err := b.run(context.Background(), items(
		"https://www.linkedin.com/in/a/",
		"https://www.linkedin.com/in/b",
		"https://www.linkedin.com/in/c",
	), &out)
	require.NoError(t, err)

	assert.Equal(t, batchSummary{Total: 3, Succeeded: 2, Failed: 1}, summary)
	require.Len(t, runner.requests, 3)
	assert.NotEqual(t, runner.requests[0].RunID, runner.requests[1].RunID)
	assert.Equal(t, "token", runner.requests[0].Session.PrimaryToken)

	records, err := b.store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	sent, err := b.store.CountToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}

func TestBatch_StopsAtDailyLimit(t *testing.T) {
	runner := &fakeRunner{}
	b := newTestBatcher(t, runner)
	b.cfg.Batch.DailyLimit = 2

	summary, err := b.run(context.Background(), items(
		"https://www.linkedin.com/in/a",
		"https://www.linkedin.com/in/b",
		"https://www.linkedin.com/in/c",
	), &bytes.Buffer{})
	require.NoError(t, err)

	assert.True(t, summary.LimitReached)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Len(t, runner.requests, 2)
}

func TestBatch_SkipsProcessedProfiles(t *testing.T) {
	runner := &fakeRunner{}
	b := newTestBatcher(t, runner)
	_, err := b.store.Record(context.Background(), storage.Record{
		RunID: "earlier", ProfileURL: "https://www.linkedin.com/in/a", Mode: "connect",
		Success: true, Status: report.StatusPending, Action: report.ActionConnect,
	})
	require.NoError(t, err)

	summary, err := b.run(context.Background(), items(
		"https://www.linkedin.com/in/a?trk=x",
		"https://www.linkedin.com/in/b",
	), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, runner.requests, 1)
	assert.Equal(t, "https://www.linkedin.com/in/b", runner.requests[0].ProfileURL)
}

func TestBatch_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{after: cancel}
	b := newTestBatcher(t, runner)

	summary, err := b.run(ctx, items(
		"https://www.linkedin.com/in/a",
		"https://www.linkedin.com/in/b",
	), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Len(t, runner.requests, 1)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestPersistResult_WritesScreenshot(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G'}
	req := automation.Request{RunID: "run-1", ProfileURL: "https://www.linkedin.com/in/a/", Mode: connection.ModeConnect}
	res := report.ActionResult{Status: report.StatusFailed, Action: report.ActionNone, Screenshot: base64.StdEncoding.EncodeToString(png)}

	rec, err := persistResult(context.Background(), nil, req, res, dir, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "run-1.png"), rec.ScreenshotPath)
	assert.Equal(t, "https://www.linkedin.com/in/a", rec.ProfileURL)
	data, err := os.ReadFile(rec.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestPrintResult_DropsScreenshot(t *testing.T) {
	var out bytes.Buffer
	res := report.ActionResult{Success: true, Status: report.StatusSent, Action: report.ActionFollow, Message: "followed", Screenshot: "aGVsbG8="}

	require.NoError(t, printResult(&out, res, false))

	assert.Contains(t, out.String(), `"status": "sent"`)
	assert.NotContains(t, out.String(), "aGVsbG8=")
}

func TestPrintHistory(t *testing.T) {
	var out bytes.Buffer
	records := []storage.Record{{
		ProfileURL: "https://www.linkedin.com/in/a", Mode: "connect",
		Status: report.StatusPending, Action: report.ActionConnect, Message: "connection request sent",
		CreatedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.Local),
	}}

	require.NoError(t, printHistory(&out, records, map[report.Status]int{report.StatusPending: 1}, 1, 25))

	assert.Contains(t, out.String(), "2026-03-02 09:30:00")
	assert.Contains(t, out.String(), "requests today: 1/25")
	assert.Contains(t, out.String(), "pending: 1")
}

var ansiCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func TestPrintHistory_ColoredStatusKeepsColumnsAligned(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = noColor })

	when := time.Date(2026, 3, 2, 9, 30, 0, 0, time.Local)
	records := []storage.Record{
		{ProfileURL: "https://www.linkedin.com/in/a", Mode: "connect", Status: report.StatusFailed,
			Action: report.ActionNone, Message: "control not found", CreatedAt: when},
		{ProfileURL: "https://www.linkedin.com/in/bb", Mode: "follow", Status: report.StatusSent,
			Action: report.ActionFollow, Message: "followed profile", CreatedAt: when},
	}

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, records, nil, 0, 25))
	assert.Contains(t, out.String(), "\x1b[", "status is colored")

	lines := strings.Split(ansiCodes.ReplaceAllString(out.String(), ""), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	header := lines[0]
	for _, col := range []struct{ name, first, second string }{
		{"ACTION", string(report.ActionNone), string(report.ActionFollow)},
		{"MESSAGE", "control not found", "followed profile"},
		{"STATUS", string(report.StatusFailed), string(report.StatusSent)},
	} {
		at := strings.Index(header, col.name)
		require.NotEqual(t, -1, at)
		require.Greater(t, len(lines[1]), at)
		require.Greater(t, len(lines[2]), at)
		assert.True(t, strings.HasPrefix(lines[1][at:], col.first), "%s column: %q", col.name, lines[1])
		assert.True(t, strings.HasPrefix(lines[2][at:], col.second), "%s column: %q", col.name, lines[2])
	}
}
