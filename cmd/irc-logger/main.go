package main

// irc-logger connects to one IRC server/channel and spools every
// channel PRIVMSG to a numbered handoff directory for irc-publisher to
// pick up (spec §4.3, §4.2).

import (
	"crypto/tls"
	"errors"
	"os"

	"github.com/perforce/p4prometheus/version"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/irclogd/internal/clock"
	"github.com/rcowham/irclogd/internal/config"
	"github.com/rcowham/irclogd/internal/ircconn"
	"github.com/rcowham/irclogd/internal/ircmsg"
	"github.com/rcowham/irclogd/internal/spool"
)

func main() {
	var (
		configFile = kingpin.Flag(
			"config",
			"Config file for irc-logger.",
		).Default("irclogd.yaml").Short('c').String()
		server = kingpin.Flag(
			"server",
			"IRC server to connect to, host:port.",
		).Required().String()
		user = kingpin.Flag(
			"user",
			"Nickname/username to register as.",
		).Required().String()
		channel = kingpin.Flag(
			"channel",
			"Channel to join and log (without the leading '#').",
		).Required().String()
		dir = kingpin.Flag(
			"dir",
			"Spool directory to write logged messages into.",
		).Required().String()
		insecureSkipVerify = kingpin.Flag(
			"insecure-skip-verify",
			"Skip TLS certificate verification (testing only).",
		).Bool()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Bool()
		cpuProfile = kingpin.Flag(
			"profile",
			"Enable CPU profiling, written to the working directory on exit.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("irc-logger")).Author("Robert Cowham")
	kingpin.CommandLine.Help = "Logs one IRC channel's messages to a spool directory.\n"
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

	logger.Infof("%v", version.Print("irc-logger"))
	logger.Infof("Connecting to %s as %s, joining #%s", *server, *user, *channel)

	if info, err := os.Stat(*dir); err != nil || !info.IsDir() {
		logger.Errorf("%s is not a directory", *dir)
		os.Exit(1)
	}
	sw, err := spool.Recover(*dir)
	if err != nil {
		logger.Errorf("error recovering spool directory: %v", err)
		os.Exit(1)
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: *insecureSkipVerify}
	conn, err := ircconn.Dial(*server, tlsConfig)
	if err != nil {
		logger.Errorf("error connecting: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	clk := clock.System{}
	sm := ircconn.New(ircconn.Config{
		User:                *user,
		Channel:             *channel,
		Password:            cfg.NickservPassword,
		Server:              *server,
		MaxSilenceSeconds:   cfg.MaxSilenceSeconds,
		PongResponseTimeout: cfg.PongResponseTimeout,
	}, clk, sw)

	if err := runLoop(logger, conn, sm, clk); err != nil {
		logger.Errorf("logger exiting: %v", err)
		os.Exit(1)
	}
}

func runLoop(logger *logrus.Logger, conn *ircconn.Conn, sm *ircconn.StateMachine, clk clock.Clock) error {
	for {
		line, timedOut, readAt, err := conn.NextLine(sm.Deadline(), clk.Now)
		if err != nil {
			return err
		}

		if timedOut {
			msg, err := sm.OnTimeout(readAt)
			if err != nil {
				return err
			}
			if msg != nil {
				if err := conn.Send(msg); err != nil {
					return err
				}
			}
			continue
		}

		sm.OnRead(readAt)
		outbound, err := sm.HandleLine(line, readAt)
		if err != nil {
			var fatal *ircconn.FatalError
			if errors.As(err, &fatal) {
				return fatal
			}
			var parseErr *ircmsg.ParseError
			if !errors.As(err, &parseErr) {
				return err
			}
			logger.Warnf("ignoring unparseable line %q: %v", line, err)
			continue
		}
		for _, m := range outbound {
			if err := conn.Send(m); err != nil {
				return err
			}
		}
	}
}
