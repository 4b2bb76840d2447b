package gitop

import "strings"

// FileState is the tri-state shape spec §3 allows for any file mentioned
// in a git status --porcelain snapshot.
type FileState int

const (
	// Missing means the file has no status line at all (clean, absent).
	Missing FileState = iota
	// Untracked means the file is new to git (porcelain "??").
	Untracked
	// Tracked means the file is known to git and has a pending change.
	Tracked
)

// StatusEntry is one line of `git status --porcelain` output, decomposed
// into its two-character index/worktree status code and the path.
type StatusEntry struct {
	Code string
	Path string
}

// ParseStatusPorcelain parses raw `git status --porcelain` output.
func ParseStatusPorcelain(out []byte) []StatusEntry {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	entries := make([]StatusEntry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if len(line) < 4 {
			continue
		}
		entries = append(entries, StatusEntry{Code: line[:2], Path: strings.TrimSpace(line[3:])})
	}
	return entries
}

// State classifies an entry's code into the tri-state enum.
func (e StatusEntry) State() FileState {
	if strings.TrimSpace(e.Code) == "??" {
		return Untracked
	}
	return Tracked
}

// Status runs `git status --porcelain --untracked-files=all` and returns
// the parsed entries. Untracked files inside a new directory are listed
// one by one (e.g. "2021/06-04.txt"), never collapsed to "2021/".
func (g *Git) Status() ([]StatusEntry, error) {
	out, err := g.Capture("status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return ParseStatusPorcelain(out), nil
}
