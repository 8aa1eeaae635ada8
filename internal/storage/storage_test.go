package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/linkedin-connector/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func result(success bool, status report.Status, action report.Action) report.ActionResult {
	return report.ActionResult{Success: success, Status: status, Action: action, Message: string(status)}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

	for i, res := range []report.ActionResult{
		result(true, report.StatusPending, report.ActionConnect),
		result(false, report.StatusFailed, report.ActionNone),
		result(true, report.StatusSent, report.ActionFollow),
	} {
		rec := NewRecord("run-1", "https://www.linkedin.com/in/p"+string(rune('a'+i)), "connect", res)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		saved, err := s.Record(ctx, rec)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, report.StatusSent, recent[0].Status)
	assert.Equal(t, report.ActionFollow, recent[0].Action)
	assert.Equal(t, report.StatusFailed, recent[1].Status)
	assert.False(t, recent[1].Success)
	assert.Equal(t, base.Add(2*time.Minute).Unix(), recent[0].CreatedAt.Unix())
}

func TestCountToday(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local)
	s.now = func() time.Time { return now }

	records := []struct {
		at  time.Time
		res report.ActionResult
	}{
		{now.Add(-time.Hour), result(true, report.StatusPending, report.ActionConnect)},
		{now.Add(-2 * time.Hour), result(true, report.StatusSent, report.ActionBoth)},
		{now.Add(-3 * time.Hour), result(true, report.StatusSent, report.ActionFollow)},
		{now.Add(-4 * time.Hour), result(false, report.StatusFailed, report.ActionNone)},
		{now.Add(-24 * time.Hour), result(true, report.StatusPending, report.ActionConnect)},
	}
	for _, r := range records {
		rec := NewRecord("run", "https://www.linkedin.com/in/x", "connect_or_follow", r.res)
		rec.CreatedAt = r.at
		_, err := s.Record(ctx, rec)
		require.NoError(t, err)
	}

	count, err := s.CountToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, NewRecord("run", "https://www.linkedin.com/in/done", "connect", result(true, report.StatusPending, report.ActionConnect)))
	require.NoError(t, err)
	_, err = s.Record(ctx, NewRecord("run", "https://www.linkedin.com/in/failed", "connect", result(false, report.StatusFailed, report.ActionNone)))
	require.NoError(t, err)

	done, err := s.Processed(ctx, "https://www.linkedin.com/in/done")
	require.NoError(t, err)
	assert.True(t, done)

	failed, err := s.Processed(ctx, "https://www.linkedin.com/in/failed")
	require.NoError(t, err)
	assert.False(t, failed)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, res := range []report.ActionResult{
		result(true, report.StatusPending, report.ActionConnect),
		result(true, report.StatusPending, report.ActionConnect),
		result(false, report.StatusFailed, report.ActionNone),
	} {
		_, err := s.Record(ctx, NewRecord("run", "https://www.linkedin.com/in/x", "connect", res))
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[report.StatusPending])
	assert.Equal(t, 1, stats[report.StatusFailed])
}
