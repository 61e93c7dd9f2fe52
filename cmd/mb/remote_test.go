package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteHome points HOME at a fresh directory for the remotes file.
func remoteHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestRemotesConfig_SaveLoad(t *testing.T) {
	home := remoteHome(t)

	cfg, err := loadRemotesConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Active)
	assert.NotNil(t, cfg.Remotes)

	cfg.Active = "prod"
	cfg.Remotes["prod"] = Remote{URL: "https://models.example.com", GRPCAddr: "models.example.com:9090", Token: "tok_abc"}
	cfg.Remotes["dev"] = Remote{URL: "http://localhost:8080"}
	require.NoError(t, saveRemotesConfig(cfg))

	path := filepath.Join(home, ".local", "state", "modelbase", "remotes.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	dir, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dir.Mode().Perm())

	got, err := loadRemotesConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestCLI_RemoteLifecycle(t *testing.T) {
	remoteHome(t)

	out := mustRunCLI(t, "", "", "remote", "list")
	assert.Contains(t, out, "no remotes configured")

	mustRunCLI(t, "", "", "remote", "add", "dev", "http://localhost:8080", "--grpc", "localhost:9090")
	mustRunCLI(t, "", "", "remote", "add", "staging", "https://staging.example.com")
	mustRunCLI(t, "", "", "remote", "use", "dev")

	out = mustRunCLI(t, "", "", "remote", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "* dev"), "active marker on dev: %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  staging"), "staging not active: %q", lines[2])

	out = mustRunCLI(t, "", "", "remote", "show")
	assert.Contains(t, out, "dev (active)")
	assert.Contains(t, out, "localhost:9090")

	out = mustRunCLI(t, "", "", "remote", "show", "staging")
	assert.NotContains(t, out, "(active)")

	mustRunCLI(t, "", "", "remote", "remove", "dev")
	cfg, err := loadRemotesConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Active, "removing the active remote clears it")
	assert.NotContains(t, cfg.Remotes, "dev")
	assert.Contains(t, cfg.Remotes, "staging")
}

func TestCLI_RemoteTokenIsMasked(t *testing.T) {
	remoteHome(t)

	mustRunCLI(t, "", "", "remote", "add", "prod", "https://models.example.com", "--token", "tok_verylongsecret")
	mustRunCLI(t, "", "", "remote", "use", "prod")

	cfg, err := loadRemotesConfig()
	require.NoError(t, err)
	assert.Equal(t, "tok_verylongsecret", cfg.Remotes["prod"].Token)

	out := mustRunCLI(t, "", "", "remote", "list")
	assert.NotContains(t, out, "tok_verylongsecret")
	assert.Contains(t, out, "tok_very...")

	out = mustRunCLI(t, "", "", "remote", "show")
	assert.NotContains(t, out, "tok_verylongsecret")
	assert.Contains(t, out, "tok_very**********")
}

func TestCLI_RemoteErrors(t *testing.T) {
	for _, args := range [][]string{
		{"remote", "use", "ghost"},
		{"remote", "remove", "ghost"},
		{"remote", "show"},
		{"remote", "show", "ghost"},
		{"remote", "add", "only-name"},
	} {
		t.Run(strings.Join(args[1:], "_"), func(t *testing.T) {
			remoteHome(t)
			_, _, err := runCLI(t, "", "", args...)
			assert.Error(t, err)
		})
	}
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "short", maskToken("short"))
	assert.Equal(t, "12345678", maskToken("12345678"))
	assert.Equal(t, "12345678...", maskToken("123456789"))
}
