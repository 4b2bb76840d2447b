// Package gitop is a thin adapter over the "git" binary found on $PATH.
// It exists so the branch-rewrite engine can treat Git as an external
// oracle (spec §9's design note) rather than binding an in-process git
// library: every call here is a plumbing subcommand invoked as a child
// process with a fixed working directory, no stdin, and captured output.
package gitop

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// ChildProcessError reports a non-zero git exit, carrying captured
// stderr for diagnostics.
type ChildProcessError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ChildProcessError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Stderr))
}

func (e *ChildProcessError) Unwrap() error { return e.Err }

// Git runs commands against a single working tree. Author identity, when
// set, is passed as "-c user.name=..."/"-c user.email=..." ahead of every
// subcommand, mirroring how grailbio's git-repo.go threads a config map
// through "-c k=v" pairs.
type Git struct {
	log        *logrus.Logger
	dir        string
	authorName string
	authorMail string
}

// New returns a Git operator rooted at dir (a git working tree).
func New(log *logrus.Logger, dir string) *Git {
	return &Git{log: log, dir: dir}
}

// WithAuthor sets the commit author/committer identity used for every
// subsequent commit.
func (g *Git) WithAuthor(name, email string) *Git {
	g.authorName = name
	g.authorMail = email
	return g
}

func (g *Git) configArgs() []string {
	if g.authorName == "" && g.authorMail == "" {
		return nil
	}
	var args []string
	if g.authorName != "" {
		args = append(args, "-c", "user.name="+g.authorName)
	}
	if g.authorMail != "" {
		args = append(args, "-c", "user.email="+g.authorMail)
	}
	return args
}

// Capture runs "git <args...>" and returns stdout, failing with a
// ChildProcessError on any non-zero exit.
func (g *Git) Capture(args ...string) ([]byte, error) {
	full := append(append([]string{}, g.configArgs()...), args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil

	g.log.Debugf("gitop: %s: git %s", g.dir, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return nil, &ChildProcessError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// Run behaves like Capture but logs stdout at debug level instead of
// returning it — the "run-and-log" variant spec §4.6 calls for.
func (g *Git) Run(args ...string) error {
	out, err := g.Capture(args...)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		g.log.Debugf("gitop: %s: git %s -> %s", g.dir, strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

// CaptureString is Capture with the result trimmed and stringified, for
// the many plumbing commands whose output is a single line.
func (g *Git) CaptureString(args ...string) (string, error) {
	out, err := g.Capture(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
