// Package rollover implements the day-rollover branch-rewrite protocol
// (spec §4.7): folding a day's "live update" commits into one permanent
// commit on master, while keeping a mutable live branch that remote
// subscribers can follow via force-push.
package rollover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rcowham/irclogd/internal/gitop"
)

const liveUpdateMessage = "live update"

// UnexpectedRepoStateError reports a git status entry that doesn't match
// any of the three admissible shapes from spec §3 (now link and/or the
// current day's log file).
type UnexpectedRepoStateError struct {
	Path string
}

func (e *UnexpectedRepoStateError) Error() string {
	return fmt.Sprintf("rollover: unexpected repo state: unrecognized entry %q in git status", e.Path)
}

// Engine drives the branch-rewrite protocol for one repository.
type Engine struct {
	log *logrus.Logger
	git *gitop.Git
	dir string
}

// New returns a rollover Engine rooted at repoDir, issuing git commands
// through g.
func New(log *logrus.Logger, g *gitop.Git, repoDir string) *Engine {
	return &Engine{log: log, git: g, dir: repoDir}
}

// walkBackPastLiveUpdates returns the SHA of the last non-"live update"
// commit reachable from HEAD, per spec §4.7 step 2.
func (e *Engine) walkBackPastLiveUpdates() (string, error) {
	base, err := e.git.CaptureString("rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rollover: reading HEAD: %w", err)
	}
	for {
		msg, err := e.git.CaptureString("show", "-s", "--format=%B", base)
		if err != nil {
			return "", fmt.Errorf("rollover: reading commit message for %s: %w", base, err)
		}
		if !strings.HasPrefix(msg, liveUpdateMessage) {
			return base, nil
		}
		base, err = e.git.CaptureString("rev-parse", base+"^")
		if err != nil {
			return "", fmt.Errorf("rollover: walking back past live update %s: %w", base, err)
		}
	}
}

// Rollover closes oldNowTarget (the log file the previous "now" link
// pointed at, or "" if there was none) and fast-forwards master with a
// single commit when that file has pending content. It never touches the
// new day's "now" link or appends the triggering message — the caller
// (the date router) does that once Rollover returns, per spec §4.5/§4.7
// step 8.
func (e *Engine) Rollover(oldNowTarget string) error {
	base, err := e.walkBackPastLiveUpdates()
	if err != nil {
		return err
	}
	if err := e.git.Run("reset", "--soft", base); err != nil {
		return fmt.Errorf("rollover: soft-resetting to %s: %w", base, err)
	}

	entries, err := e.git.Status()
	if err != nil {
		return fmt.Errorf("rollover: reading status: %w", err)
	}

	var nowState gitop.FileState = gitop.Missing
	targetPresent := false
	for _, ent := range entries {
		switch ent.Path {
		case "now":
			nowState = ent.State()
		case oldNowTarget:
			if oldNowTarget != "" {
				targetPresent = true
				continue
			}
			return &UnexpectedRepoStateError{Path: ent.Path}
		default:
			return &UnexpectedRepoStateError{Path: ent.Path}
		}
	}

	if nowState == gitop.Tracked {
		if err := e.git.Run("rm", "--cached", "now"); err != nil {
			return fmt.Errorf("rollover: untracking now: %w", err)
		}
	}

	if targetPresent {
		if err := e.git.Run("add", oldNowTarget); err != nil {
			return fmt.Errorf("rollover: staging %s: %w", oldNowTarget, err)
		}
		if err := e.git.Run("commit", "-m", oldNowTarget); err != nil {
			return fmt.Errorf("rollover: committing %s: %w", oldNowTarget, err)
		}
		if err := e.git.Run("push", "origin", "HEAD:master"); err != nil {
			return fmt.Errorf("rollover: pushing master: %w", err)
		}
	}

	// now must survive until after the master commit lands (step 7
	// strictly follows step 6's push).
	if nowState != gitop.Missing {
		if err := os.Remove(filepath.Join(e.dir, "now")); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rollover: removing now symlink: %w", err)
		}
	}

	return nil
}

// PublishLiveUpdate commits and force-pushes everything currently staged
// or modified in the working tree as a single "live update" commit, the
// per-drain publication spec §4.7 describes. It is a no-op (returns nil
// without creating an empty commit) if nothing changed.
func (e *Engine) PublishLiveUpdate() error {
	if err := e.git.Run("add", "."); err != nil {
		return fmt.Errorf("rollover: staging live update: %w", err)
	}
	pending, err := e.git.Status()
	if err != nil {
		return fmt.Errorf("rollover: reading status: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	if err := e.git.Run("commit", "-m", liveUpdateMessage); err != nil {
		if isNothingToCommit(err) {
			return nil
		}
		return fmt.Errorf("rollover: committing live update: %w", err)
	}
	if err := e.git.Run("push", "origin", "HEAD:live", "-f"); err != nil {
		return fmt.Errorf("rollover: force-pushing live: %w", err)
	}
	return nil
}

func isNothingToCommit(err error) bool {
	var cpe *gitop.ChildProcessError
	if !errors.As(err, &cpe) {
		return false
	}
	return strings.Contains(cpe.Stderr, "nothing to commit")
}
