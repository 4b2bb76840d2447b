package main

// irc-publisher drains a logger's spool directory into a date-partitioned
// git repository, folding each day's messages into a "live" branch as
// they arrive and rewriting history onto "master" at day rollover (spec
// §4.5, §4.7, §4.8).

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/perforce/p4prometheus/version"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/irclogd/internal/branchgraph"
	"github.com/rcowham/irclogd/internal/config"
	"github.com/rcowham/irclogd/internal/gitop"
	"github.com/rcowham/irclogd/internal/publish"
)

func main() {
	var (
		configFile = kingpin.Flag(
			"config",
			"Config file for irc-publisher.",
		).Default("irclogd.yaml").Short('c').String()
		loggerDir = kingpin.Flag(
			"logger-dir",
			"Spool directory a logger instance is writing into.",
		).Required().String()
		repoDir = kingpin.Flag(
			"repo",
			"Git working tree to publish the log into.",
		).Required().String()
		graphFile = kingpin.Flag(
			"graph",
			"Graphviz dot file to render the master/live commit lineage to.",
		).String()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Bool()
		cpuProfile = kingpin.Flag(
			"profile",
			"Enable CPU profiling, written to the working directory on exit.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("irc-publisher")).Author("Robert Cowham")
	kingpin.CommandLine.Help = "Publishes a logger's spooled messages into a date-partitioned git repository.\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	cfg, err := config.LoadConfigFile(*configFile)
	if err != nil {
		logger.Errorf("error loading config file: %v", err)
		os.Exit(1)
	}

	if _, err := os.Stat(filepath.Join(*repoDir, ".git")); err != nil {
		logger.Errorf("%s is not a git working tree: %v", *repoDir, err)
		os.Exit(1)
	}

	logger.Infof("%v", version.Print("irc-publisher"))
	logger.Infof("Publishing %s into %s", *loggerDir, *repoDir)

	g := gitop.New(logger, *repoDir).WithAuthor(cfg.AuthorName, cfg.AuthorEmail)
	pub := publish.New(logger, *loggerDir, *repoDir, g)

	if *graphFile != "" {
		if err := writeGraph(g, *graphFile); err != nil {
			logger.Warnf("failed to render commit graph: %v", err)
		}
	}

	w, err := publish.NewWatcher(logger, pub)
	if err != nil {
		logger.Errorf("error starting watcher: %v", err)
		os.Exit(1)
	}
	defer w.Close()

	if err := w.Run(); err != nil {
		logger.Errorf("publisher exiting: %v", err)
		os.Exit(1)
	}
}

func writeGraph(g *gitop.Git, path string) error {
	out, err := branchgraph.New(g).Render()
	if err != nil {
		return fmt.Errorf("rendering graph: %w", err)
	}
	return os.WriteFile(path, []byte(out), 0o644)
}
