// Package spool implements the crash-safe, numbered-file handoff between
// the logger and the publisher: one file per IRC message, named with the
// decimal ASCII of its sequence number, written via a ".partial" tempname
// and published by an atomic rename.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const partialSuffix = ".partial"

// maxFilenameBytes bounds the rendered sequence-number filename; u32 decimal
// never approaches this, but the spec calls it out as an explicit invariant.
const maxFilenameBytes = 255

// Entry is a fully decoded spool file: the three newline-delimited fields
// laid out in §3 of the spec.
type Entry struct {
	Timestamp uint64
	Sender    string
	Body      []byte
}

// Encode renders an Entry to its on-disk spool-file representation.
func Encode(e Entry) []byte {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(e.Timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(e.Sender)
	b.WriteByte('\n')
	b.Write(e.Body)
	return []byte(b.String())
}

// Decode parses a spool file's raw contents back into an Entry.
func Decode(data []byte) (Entry, error) {
	nl1 := indexByte(data, '\n', 0)
	if nl1 < 0 {
		return Entry{}, fmt.Errorf("spool: missing newline after timestamp")
	}
	ts, err := strconv.ParseUint(string(data[:nl1]), 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("spool: invalid timestamp: %w", err)
	}
	nl2 := indexByte(data, '\n', nl1+1)
	if nl2 < 0 {
		return Entry{}, fmt.Errorf("spool: missing newline after sender")
	}
	sender := string(data[nl1+1 : nl2])
	body := data[nl2+1:]
	return Entry{Timestamp: ts, Sender: sender, Body: body}, nil
}

func indexByte(b []byte, c byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// Writer assigns monotonically increasing sequence numbers within one
// spool directory and publishes each message as an atomically renamed
// file. A Writer is not safe for concurrent use — the logger is
// single-threaded (spec §5) and relies on that for uniqueness.
type Writer struct {
	dir     string
	nextSeq uint32
}

// Recover scans dir at startup: it deletes any leftover ".partial" file
// from an interrupted previous run, then computes the next sequence
// number from the highest surviving entry name (or 0 if the directory is
// empty). A name that doesn't parse as an unsigned decimal integer is a
// fatal condition the caller should report as InvalidFilenameInOutDir.
func Recover(dir string) (*Writer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("spool: reading %s: %w", dir, err)
	}

	var maxSeen uint32
	found := false
	for _, de := range entries {
		name := de.Name()
		if strings.HasSuffix(name, partialSuffix) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("spool: removing stale partial %s: %w", name, err)
			}
			continue
		}
		n, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			return nil, &InvalidFilenameError{Name: name}
		}
		if !found || uint32(n) > maxSeen {
			maxSeen = uint32(n)
		}
		found = true
	}

	next := uint32(0)
	if found {
		next = maxSeen + 1
	}
	return &Writer{dir: dir, nextSeq: next}, nil
}

// InvalidFilenameError reports a spool entry whose name is not a decimal
// unsigned integer.
type InvalidFilenameError struct{ Name string }

func (e *InvalidFilenameError) Error() string {
	return fmt.Sprintf("spool: invalid filename in spool directory: %q", e.Name)
}

// isEmpty reports whether the directory currently has no entries at all
// (used for the next_seq_num reset rule).
func isEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

// Write publishes one message: if the spool is observed empty and the
// writer's sequence counter isn't already at 0, the counter resets to 0
// first (keeping numbers small while a consumer is keeping up — spec
// §4.2's reset rule, including its documented race against a concurrent
// drain). It then writes the entry via a ".partial" tempfile and renames
// it into place, returning the published sequence number.
func (w *Writer) Write(e Entry) (uint32, error) {
	if w.nextSeq != 0 {
		empty, err := isEmpty(w.dir)
		if err != nil {
			return 0, fmt.Errorf("spool: checking emptiness of %s: %w", w.dir, err)
		}
		if empty {
			w.nextSeq = 0
		}
	}

	seq := w.nextSeq
	name := strconv.FormatUint(uint64(seq), 10)
	if len(name) > maxFilenameBytes {
		return 0, fmt.Errorf("spool: sequence number filename exceeds %d bytes", maxFilenameBytes)
	}

	partial := filepath.Join(w.dir, name+partialSuffix)
	final := filepath.Join(w.dir, name)

	if err := os.WriteFile(partial, Encode(e), 0o644); err != nil {
		return 0, fmt.Errorf("spool: writing %s: %w", partial, err)
	}
	if err := os.Rename(partial, final); err != nil {
		return 0, fmt.Errorf("spool: renaming %s to %s: %w", partial, final, err)
	}

	w.nextSeq++
	return seq, nil
}

// NextSeq reports the sequence number the next Write call will use.
func (w *Writer) NextSeq() uint32 { return w.nextSeq }

// listNumeric returns the numeric (non-".partial") entry names in dir, in
// the order os.ReadDir returned them (not assumed sorted).
func listNumeric(dir string) ([]uint32, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	nums := make([]uint32, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if strings.HasSuffix(name, partialSuffix) {
			continue
		}
		n, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			return nil, &InvalidFilenameError{Name: name}
		}
		nums = append(nums, uint32(n))
	}
	return nums, nil
}

func minMax(nums []uint32) (min, max uint32, ok bool) {
	if len(nums) == 0 {
		return 0, 0, false
	}
	min, max = nums[0], nums[0]
	for _, n := range nums[1:] {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	return min, max, true
}

// Range reports the [min,max] span of numeric entries currently present,
// for diagnostics / tests. Production code uses the same single-pass
// min/max directly via Drain.
func Range(dir string) (min, max uint32, ok bool, err error) {
	nums, err := listNumeric(dir)
	if err != nil {
		return 0, 0, false, err
	}
	min, max, ok = minMax(nums)
	return
}
