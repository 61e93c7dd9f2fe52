package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newClone creates a bare origin with one commit on main and returns a
// working clone of it.
func newClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	origin := t.TempDir()
	gitRun(t, origin, "init", "--bare")

	work := t.TempDir()
	gitRun(t, work, "clone", origin, "repo")
	repo := filepath.Join(work, "repo")
	gitRun(t, repo, "config", "user.email", "backup@modelbase.test")
	gitRun(t, repo, "config", "user.name", "modelbase")
	gitRun(t, repo, "symbolic-ref", "HEAD", "refs/heads/main")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README"), []byte("backups\n"), 0o644))
	gitRun(t, repo, "add", ".")
	gitRun(t, repo, "commit", "-m", "init")
	gitRun(t, repo, "push", "origin", "main")
	return repo
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func commitCount(t *testing.T, repo string) string {
	return gitRun(t, repo, "rev-list", "--count", "HEAD")
}

func TestGitDestination_CommitsChanges(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "modelbase.jsonl", "main")
	ctx := context.Background()

	first := `{"version":"1","type":"header","timestamp":"2026-01-01T00:00:00Z","model_count":1,"document_count":0}` + "\n" +
		`{"type":"model","data":{"name":"books"}}` + "\n"
	require.NoError(t, dest.Write(ctx, []byte(first)))

	got, err := os.ReadFile(filepath.Join(repo, "modelbase.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, first, string(got))
	assert.Equal(t, "2", commitCount(t, repo))
	assert.Equal(t, "modelbase: backup 1 models, 0 documents", gitRun(t, repo, "log", "-1", "--format=%s"))

	// Same content under a newer header: nothing to commit.
	restamped := strings.Replace(first, "2026-01-01", "2026-01-02", 1)
	require.NoError(t, dest.Write(ctx, []byte(restamped)))
	assert.Equal(t, "2", commitCount(t, repo))

	second := first + `{"type":"document","data":{"model":"books","id":"b1"}}` + "\n"
	require.NoError(t, dest.Write(ctx, []byte(second)))
	assert.Equal(t, "3", commitCount(t, repo))

	// The push reached origin.
	assert.Equal(t, gitRun(t, repo, "rev-parse", "HEAD"), gitRun(t, repo, "rev-parse", "origin/main"))
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "backups/modelbase.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	require.NoError(t, dest.Write(context.Background(), data))

	got, err := os.ReadFile(filepath.Join(repo, "backups", "modelbase.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got))
}

func TestCommitMessage(t *testing.T) {
	assert.Equal(t, "modelbase: backup 2 models, 7 documents",
		commitMessage([]byte(`{"type":"header","model_count":2,"document_count":7}`+"\n")))
	assert.Equal(t, "modelbase: update backup", commitMessage([]byte("not json\n")))
	assert.Equal(t, "modelbase: update backup", commitMessage([]byte(`{"type":"model"}`)))
}

func TestExportBody(t *testing.T) {
	assert.Equal(t, "b\nc\n", string(exportBody([]byte("a\nb\nc\n"))))
	assert.Empty(t, exportBody([]byte("header-only")))
}
