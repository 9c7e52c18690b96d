package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip_planner/internal/bootstrap"
	"trip_planner/internal/shared"
)

func TestNew_FailureReleasesWhatWasStarted(t *testing.T) {
	lexicon, err := os.ReadFile(filepath.Join("..", "analyzer", "lexicon.yaml"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, lexicon, 0o600))

	before := runtime.NumGoroutine()

	// nothing listens on port 1, so the database step fails after the
	// caches and the lexicon watcher are running
	a, err := bootstrap.New(context.Background(), shared.Config{
		MySQLDSN:           "root:root@tcp(127.0.0.1:1)/trip?timeout=1s",
		LexiconPath:        path,
		CacheSweepInterval: time.Minute,
	})
	require.Error(t, err)
	assert.Nil(t, a)

	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		2*time.Second, 10*time.Millisecond, "sweepers and watcher should stop")
}
