package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip_planner/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := run(t, "analyze", "hotel", "economico", "a", "Roma", "per", "due", "persone")
	require.NoError(t, err)

	var a domain.QueryAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, []domain.Domain{domain.Lodging}, a.DetectedDomains)
	assert.Equal(t, "roma", a.SearchTerms.Location)
	assert.Equal(t, "2", a.SearchTerms.GroupSize)
}

func TestAnalyzeCommand_EmptyQuery(t *testing.T) {
	_, err := run(t, "analyze", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestLexiconCheck(t *testing.T) {
	out, err := run(t, "lexicon", "check", filepath.Join("..", "..", "internal", "analyzer", "lexicon.yaml"))
	require.NoError(t, err)
	for _, d := range domain.All {
		assert.Contains(t, out, string(d))
	}
	assert.Contains(t, out, "ok\n")
}

func TestLexiconCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domains:\n  lodging: [hotel]\n"), 0o600))

	_, err := run(t, "lexicon", "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no terms")
}
