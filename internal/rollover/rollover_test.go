package rollover

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/irclogd/internal/gitop"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	return l
}

func runBash(t *testing.T, dir, cmdLine string) string {
	t.Helper()
	cmd := exec.Command("/bin/bash", "-c", cmdLine)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

// initBareRemoteAndClone sets up an "origin" bare repo and a clone that
// the test operates on, so push targets behave like a real deployment.
func initBareRemoteAndClone(t *testing.T) (repoDir string) {
	remote := t.TempDir()
	runBash(t, remote, "git init -q --bare -b main")

	repoDir = t.TempDir()
	runBash(t, repoDir, "git init -q -b main")
	runBash(t, repoDir, "git config user.email test@example.com")
	runBash(t, repoDir, "git config user.name Test")
	runBash(t, repoDir, "git remote add origin "+remote)
	runBash(t, repoDir, "git commit --allow-empty -q -m init")
	runBash(t, repoDir, "git push -q origin HEAD:master")
	runBash(t, repoDir, "git push -q origin HEAD:live")
	return repoDir
}

func TestRolloverFoldsLiveUpdatesIntoOneMasterCommit(t *testing.T) {
	dir := initBareRemoteAndClone(t)
	g := gitop.New(testLogger(), dir)
	eng := New(testLogger(), g, dir)

	// Simulate two live-update drains writing to the same day's log.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "now"), []byte("2021/06-04.txt"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2021"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2021/06-04.txt"), []byte("entry 0\n\n"), 0o644))
	require.NoError(t, eng.PublishLiveUpdate())

	require.NoError(t, appendTo(filepath.Join(dir, "2021/06-04.txt"), "entry 1\n\n"))
	require.NoError(t, eng.PublishLiveUpdate())

	beforeLog := runBash(t, dir, "git log --format=%s")
	assert.Contains(t, beforeLog, "live update")

	require.NoError(t, eng.Rollover("2021/06-04.txt"))

	afterLog := runBash(t, dir, "git log --format=%s")
	lines := strings.Split(strings.TrimSpace(afterLog), "\n")
	assert.Equal(t, "2021/06-04.txt", lines[0])
	assert.Equal(t, "init", lines[len(lines)-1])

	_, err := os.Lstat(filepath.Join(dir, "now"))
	assert.True(t, os.IsNotExist(err), "now symlink must be gone after rollover")

	masterLog := runBash(t, dir, "git log --format=%s origin/master")
	assert.Contains(t, masterLog, "2021/06-04.txt")
}

func TestRolloverFatalOnUnexpectedFile(t *testing.T) {
	dir := initBareRemoteAndClone(t)
	g := gitop.New(testLogger(), dir)
	eng := New(testLogger(), g, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "now"), []byte("2021/06-04.txt"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2021"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2021/06-04.txt"), []byte("entry 0\n\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("huh"), 0o644))
	require.NoError(t, eng.PublishLiveUpdate())

	err := eng.Rollover("2021/06-04.txt")
	require.Error(t, err)
	var unexpected *UnexpectedRepoStateError
	assert.ErrorAs(t, err, &unexpected)
}

func appendTo(path, s string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}
