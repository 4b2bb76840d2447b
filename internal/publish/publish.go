// Package publish orchestrates one full publication pass: draining the
// spool, routing each message by date, rewriting branches on day
// rollover, and publishing a live-update commit when a drain produced
// anything (spec §4.5, §4.7, §4.8).
package publish

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rcowham/irclogd/internal/dateroute"
	"github.com/rcowham/irclogd/internal/gitop"
	"github.com/rcowham/irclogd/internal/rollover"
	"github.com/rcowham/irclogd/internal/spool"
)

// Publisher integrates new spool entries into a date-partitioned Git
// repository and force-pushes the live branch after every drain that
// published something.
type Publisher struct {
	log      *logrus.Logger
	spoolDir string
	repoDir  string
	git      *gitop.Git
	roll     *rollover.Engine
}

// New returns a Publisher watching spoolDir and integrating into the
// git working tree at repoDir.
func New(log *logrus.Logger, spoolDir, repoDir string, git *gitop.Git) *Publisher {
	return &Publisher{
		log:      log,
		spoolDir: spoolDir,
		repoDir:  repoDir,
		git:      git,
		roll:     rollover.New(log, git, repoDir),
	}
}

// routeAndAppend implements spec §4.5's date-routing + append step for a
// single spool file's raw contents.
func (p *Publisher) routeAndAppend(data []byte) error {
	incoming, err := dateroute.RouteSpoolFile(data)
	if err != nil {
		return err
	}

	// Integrity check: the freshly encoded path must decode back to the
	// same date (spec §4.5, §8 property 4).
	if decoded, err := dateroute.Decode(incoming.Path()); err != nil || decoded != incoming {
		return fmt.Errorf("dateroute: integrity check failed encoding %+v as %q", incoming, incoming.Path())
	}

	now, err := dateroute.ReadNow(p.repoDir, incoming)
	if err != nil {
		return fmt.Errorf("publish: reading now: %w", err)
	}

	target := now
	switch dateroute.Compare(now, incoming) {
	case dateroute.Same, dateroute.Past:
		// ordering dominates timestamp fidelity: append to whatever day
		// is currently open, even if incoming is an out-of-order past
		// timestamp.
	case dateroute.Future:
		oldTarget := now.Path()
		if err := p.roll.Rollover(oldTarget); err != nil {
			return fmt.Errorf("publish: rolling over from %s: %w", oldTarget, err)
		}
		if err := dateroute.SetNow(p.repoDir, incoming); err != nil {
			return fmt.Errorf("publish: repointing now: %w", err)
		}
		target = incoming
	}

	if err := dateroute.AppendEntry(p.repoDir, target.Path(), data); err != nil {
		return fmt.Errorf("publish: appending entry: %w", err)
	}
	return nil
}

// Drain runs one spool drain, routing every discovered message into the
// repository. Apart from the master commit and push that a day rollover
// makes along the way, it does not commit anything — the caller decides
// whether to publish a live update based on the returned Outcome.
func (p *Publisher) Drain() (spool.Outcome, error) {
	return spool.Drain(p.log, p.spoolDir, func(seq uint32, data []byte) error {
		return p.routeAndAppend(data)
	})
}

// PublishLiveUpdate commits and force-pushes the live branch.
func (p *Publisher) PublishLiveUpdate() error {
	return p.roll.PublishLiveUpdate()
}

// RunOnce performs one drain-then-publish cycle: a drain pass, followed
// by a live-update publication if and only if the drain published
// anything (spec §4.8).
func (p *Publisher) RunOnce() error {
	outcome, err := p.Drain()
	if err != nil {
		return err
	}
	if outcome != spool.Published {
		p.log.Debug("publish: drain had nothing to publish")
		return nil
	}
	return p.PublishLiveUpdate()
}
