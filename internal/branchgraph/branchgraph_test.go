package branchgraph

import (
	"os"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/irclogd/internal/gitop"
)

func runBash(t *testing.T, dir, cmdLine string) string {
	t.Helper()
	cmd := exec.Command("/bin/bash", "-c", cmdLine)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

func TestRenderIncludesBothBranches(t *testing.T) {
	dir := t.TempDir()
	runBash(t, dir, "git init -q -b master")
	runBash(t, dir, "git config user.email test@example.com")
	runBash(t, dir, "git config user.name Test")
	runBash(t, dir, "git commit --allow-empty -q -m first")
	runBash(t, dir, "git branch live")
	runBash(t, dir, "git commit --allow-empty -q -m second")
	runBash(t, dir, "git update-ref refs/remotes/origin/master refs/heads/master")
	runBash(t, dir, "git update-ref refs/remotes/origin/live refs/heads/live")

	log := logrus.New()
	log.Out = os.Stderr
	g := New(gitop.New(log, dir))

	out, err := g.Render()
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}
