// Package buildinfo exposes irclogd's version string. Neither
// cmd/irc-logger nor cmd/irc-publisher imports it; both call
// p4prometheus's version.Print directly.
package buildinfo

import "github.com/perforce/p4prometheus/version"

// Print renders app's version banner the way p4prometheus-derived tools
// format theirs.
func Print(app string) string {
	return version.Print(app)
}
