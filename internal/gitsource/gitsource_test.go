package gitsource

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitFile writes name into the repository at dir and commits it.
func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "deck author", Email: "decks@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestSyncClonesThenPulls(t *testing.T) {
	// The local file transport shells out to git-upload-pack.
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	ctx := context.Background()
	upstreamDir := t.TempDir()
	upstream, err := git.PlainInit(upstreamDir, false)
	require.NoError(t, err)
	commitFile(t, upstream, upstreamDir, "verbs.md", "W: comer\nT: to eat\n")

	clone := filepath.Join(t.TempDir(), "repos", "verbs")
	require.NoError(t, Sync(ctx, upstreamDir, clone))
	assert.FileExists(t, filepath.Join(clone, "verbs.md"))

	// A second sync with nothing new is a no-op.
	require.NoError(t, Sync(ctx, upstreamDir, clone))

	commitFile(t, upstream, upstreamDir, "nouns.md", "W: pan\nT: bread\n")
	require.NoError(t, Sync(ctx, upstreamDir, clone))
	assert.FileExists(t, filepath.Join(clone, "nouns.md"))
}

func TestSyncCloneFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	clone := filepath.Join(t.TempDir(), "broken")

	err := Sync(ctx, filepath.Join(t.TempDir(), "does-not-exist"), clone)
	require.Error(t, err)
	assert.NoDirExists(t, clone)
}

func TestSyncRejectsNonRepository(t *testing.T) {
	dir := t.TempDir()
	err := Sync(context.Background(), "https://example.com/decks.git", dir)
	assert.Error(t, err)
}
