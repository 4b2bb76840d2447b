package publish

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher drains the publisher once at startup (to mop up anything left
// over from a previous process), then blocks on filesystem notifications
// for its spool directory and runs one drain-then-publish cycle per
// Create event. Events are not grouped into batches.
type Watcher struct {
	log *logrus.Logger
	pub *Publisher
	w   *fsnotify.Watcher
}

// NewWatcher registers a watch on pub's spool directory.
func NewWatcher(log *logrus.Logger, pub *Publisher) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("publish: creating watcher: %w", err)
	}
	if err := fw.Add(pub.spoolDir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("publish: watching %s: %w", pub.spoolDir, err)
	}
	return &Watcher{log: log, pub: pub, w: fw}, nil
}

// Close releases the underlying notification descriptor.
func (w *Watcher) Close() error { return w.w.Close() }

// isMoveInto reports whether ev is a Create event: fsnotify surfaces the
// atomic-rename publication step (spool writer §4.2) as a Create event on
// the destination path. fsnotify registers a broad mask over the whole
// directory, not a move-only inotify watch, so other events arrive here
// too. The spool writer's tempfile write (Write) and the drainer's own
// cleanup (Remove) are filtered out; the creation of the ".partial"
// tempfile is itself a Create and passes, and the drain it triggers skips
// ".partial" files.
func isMoveInto(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Create)
}

// Run performs the startup drain and then loops forever, draining (and,
// when appropriate, publishing a live update) on every Create event.
// Other events are ignored. It returns only on a
// fatal error — a drain failure or one of the watcher's channels closing.
func (w *Watcher) Run() error {
	if err := w.pub.RunOnce(); err != nil {
		return fmt.Errorf("publish: startup drain: %w", err)
	}

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return fmt.Errorf("publish: watcher event channel closed")
			}
			if !isMoveInto(ev) {
				continue
			}
			// One drain per event. A drain pass consumes every ready
			// entry, so when several renames land together the later
			// events usually find nothing left and publish nothing.
			if err := w.pub.RunOnce(); err != nil {
				return fmt.Errorf("publish: drain: %w", err)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return fmt.Errorf("publish: watcher error channel closed")
			}
			return fmt.Errorf("publish: watcher error: %w", err)
		}
	}
}
