// Package fswatch is an opt-in diagnostic: it watches a staging
// directory while a promote is in flight and logs create/write/remove
// events, so a stuck or unexpectedly slow promote can be diagnosed
// from its filesystem activity instead of only from its final error.
package fswatch

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher logs filesystem events under one directory until Close.
type Watcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// Start begins watching dir, logging each event at debug level through
// log until Close is called. A failure to add dir (already removed, or
// never created) is returned immediately rather than left to surface
// silently later.
func Start(dir string, log *logrus.Entry) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{w: w, done: make(chan struct{})}
	go watcher.run(log.WithField("staging_dir", dir))
	return watcher, nil
}

func (w *Watcher) run(log *logrus.Entry) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			log.WithField("op", event.Op.String()).Debug(event.Name)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			log.WithError(err).Debug("staging watch error")
		}
	}
}

// Close stops the watcher and waits for its event loop to drain.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}
