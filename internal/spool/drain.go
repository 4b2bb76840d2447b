package spool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Outcome reports whether a drain pass published anything.
type Outcome int

const (
	Nothing Outcome = iota
	Published
)

// Processor is invoked once per spool file, in ascending sequence order,
// with the file's raw bytes. It owns routing the message into the
// destination (the repo log file, in the publisher's case).
type Processor func(seq uint32, data []byte) error

// Drain scans dir for the contiguous (possibly gappy) range of numbered
// entries and feeds each, in ascending order, to process. A missing file
// strictly between the observed min and max is logged and skipped — it
// tolerates an interrupted delete from a previous drain. A missing file
// at either endpoint is a fatal, unexpected condition: the endpoints are
// exactly the files Drain's own directory scan just observed to exist.
//
// Each processed file is unlinked after a successful call to process,
// which is what shrinks the range a subsequent Drain will see. Drain does
// not batch anything into a single transaction; the caller decides what,
// if anything, to commit after a whole pass completes.
func Drain(log *logrus.Logger, dir string, process Processor) (Outcome, error) {
	nums, err := listNumeric(dir)
	if err != nil {
		return Nothing, err
	}
	min, max, ok := minMax(nums)
	if !ok {
		return Nothing, nil
	}

	published := false
	for i := min; ; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%d", i))
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				if i != min && i != max {
					log.Warnf("spool: drain: entry %d missing (interrupted delete tolerated)", i)
					continue
				}
				return Nothing, fmt.Errorf("spool: drain: endpoint entry %d unexpectedly missing", i)
			}
			return Nothing, fmt.Errorf("spool: drain: reading %s: %w", path, err)
		}

		if err := process(i, data); err != nil {
			return Nothing, fmt.Errorf("spool: drain: processing entry %d: %w", i, err)
		}
		if err := os.Remove(path); err != nil {
			return Nothing, fmt.Errorf("spool: drain: removing %s: %w", path, err)
		}
		published = true

		if i == max {
			break
		}
	}

	if published {
		return Published, nil
	}
	return Nothing, nil
}
