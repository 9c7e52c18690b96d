package analyzer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsAndKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, defaultLexicon, 0o644))

	an := New(nil)
	w, err := Watch(an, path)
	require.NoError(t, err)

	reloads := make(chan error, 8)
	w.OnReload = func(err error) {
		select {
		case reloads <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	updated := bytes.Replace(defaultLexicon, []byte("selectivity: 0.2"), []byte("selectivity: 0.5"), 1)
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	assert.Eventually(t, func() bool {
		return an.Lexicon().Thresholds.Selectivity == 0.5
	}, 3*time.Second, 20*time.Millisecond)

	for len(reloads) > 0 {
		<-reloads
	}
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [broken"), 0o644))
	select {
	case <-waitForError(reloads):
	case <-time.After(3 * time.Second):
		t.Fatal("no failed reload observed")
	}
	assert.Equal(t, 0.5, an.Lexicon().Thresholds.Selectivity)
}

func waitForError(in <-chan error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for err := range in {
			if err != nil {
				close(done)
				return
			}
		}
	}()
	return done
}

func TestWatch_InvalidInitialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domains: {}"), 0o644))

	_, err := Watch(New(nil), path)
	assert.Error(t, err)
}
