package gitop

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	return l
}

func initRepo(t *testing.T) string {
	dir := t.TempDir()
	runBash(t, dir, "git init -q -b main")
	runBash(t, dir, "git config user.email test@example.com")
	runBash(t, dir, "git config user.name Test")
	return dir
}

func runBash(t *testing.T, dir, cmdLine string) string {
	t.Helper()
	cmd := exec.Command("/bin/bash", "-c", cmdLine)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

func TestCaptureRunsGit(t *testing.T) {
	dir := initRepo(t)
	g := New(testLogger(), dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))
	require.NoError(t, g.Run("add", "a.txt"))
	require.NoError(t, g.WithAuthor("Bot", "bot@example.com").Run("commit", "-m", "initial"))

	out, err := g.CaptureString("log", "-1", "--format=%s")
	require.NoError(t, err)
	assert.Equal(t, "initial", out)
}

func TestCaptureFailsOnBadCommand(t *testing.T) {
	dir := initRepo(t)
	g := New(testLogger(), dir)

	_, err := g.Capture("not-a-real-subcommand")
	require.Error(t, err)
	var cpe *ChildProcessError
	assert.ErrorAs(t, err, &cpe)
}

func TestStatusTriState(t *testing.T) {
	dir := initRepo(t)
	g := New(testLogger(), dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "now"), []byte("2021/06-04.txt"), 0o644))
	entries, err := g.Status()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Untracked, entries[0].State())
	assert.Equal(t, "now", entries[0].Path)
}
