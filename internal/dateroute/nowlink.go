package dateroute

import (
	"fmt"
	"os"
	"path/filepath"
)

// NowLinkName is the repo-root symlink naming the currently open day.
const NowLinkName = "now"

// ReadNow reads the "now" symlink inside repoRoot. If it doesn't exist,
// it is created pointing at fallback (the incoming message's date) and
// that target is returned — the spec's "creating it pointing at
// YYYY/MM-DD.txt if absent" clause.
func ReadNow(repoRoot string, fallback Date) (Date, error) {
	link := filepath.Join(repoRoot, NowLinkName)
	target, err := os.Readlink(link)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.Symlink(fallback.Path(), link); err != nil {
				return Date{}, fmt.Errorf("dateroute: creating now symlink: %w", err)
			}
			return fallback, nil
		}
		return Date{}, fmt.Errorf("dateroute: reading now symlink: %w", err)
	}
	return Decode(target)
}

// SetNow (re)points the "now" symlink at target's path, removing any
// existing link first. Used after a rollover closes the previous day.
func SetNow(repoRoot string, target Date) error {
	link := filepath.Join(repoRoot, NowLinkName)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dateroute: removing stale now symlink: %w", err)
	}
	if err := os.Symlink(target.Path(), link); err != nil {
		return fmt.Errorf("dateroute: creating now symlink: %w", err)
	}
	return nil
}

// AppendEntry opens (creating any containing YYYY/ directory as needed)
// the log file at path relative to repoRoot and appends payload followed
// by the "\n\n" record terminator (spec §3's repository log file format).
func AppendEntry(repoRoot, relPath string, payload []byte) error {
	full := filepath.Join(repoRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("dateroute: creating %s: %w", filepath.Dir(full), err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("dateroute: opening %s: %w", full, err)
	}
	defer f.Close()

	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("dateroute: appending to %s: %w", full, err)
	}
	if _, err := f.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("dateroute: appending terminator to %s: %w", full, err)
	}
	return nil
}
