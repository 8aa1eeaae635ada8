package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "connector.log")

	log, err := New(Options{Level: "debug", ToFile: true, FilePath: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	log.Infow("Automation finished", "run_id", "abc")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"abc"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Options{Level: "verbose"})
	require.NoError(t, err)

	assert.False(t, log.Desugar().Core().Enabled(-1))
	assert.True(t, log.Desugar().Core().Enabled(0))
}
