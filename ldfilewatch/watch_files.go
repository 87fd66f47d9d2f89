// Package ldfilewatch provides the file-watching mechanism for the ldfiledata package, so a
// file data source reloads its data whenever one of its files changes on disk. Pass WatchFiles
// to ldfiledata.DataSourceBuilder.Reloader to enable it.
package ldfilewatch

import (
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
)

// retryInterval is how long to wait before re-attempting a failed watch setup (for instance
// when a watched file's directory does not exist yet).
const retryInterval = time.Second

// WatchFiles is an ldfiledata.ReloaderFactory that uses fsnotify to monitor the data files and
// invoke reload whenever one of them changes.
//
//	factory := ldfiledata.DataSource().
//	    FilePaths("./flags.json").
//	    Reloader(ldfilewatch.WatchFiles)
//
// Each file's parent directory is watched as well as the file itself, so a file that is deleted
// and recreated (the usual behavior of editors and of orchestration tools that swap symlinked
// config files) is picked up again rather than silently unwatched.
func WatchFiles(paths []string, loggers ldlog.Loggers, reload func(), closeCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher: watcher,
		loggers: loggers,
		reload:  reload,
		paths:   paths,
	}
	go fw.run(closeCh)
	return nil
}

type fileWatcher struct {
	watcher *fsnotify.Watcher
	loggers ldlog.Loggers
	reload  func()
	paths   []string
}

func (fw *fileWatcher) run(closeCh <-chan struct{}) {
	retryCh := make(chan struct{}, 1)
	scheduleRetry := func() {
		time.AfterFunc(retryInterval, func() {
			select {
			case retryCh <- struct{}{}:
			default: // a retry is already pending
			}
		})
	}
	for {
		watchedPaths := fw.setUpWatches(scheduleRetry)
		if !fw.waitForChange(closeCh, retryCh, watchedPaths) {
			_ = fw.watcher.Close()
			return
		}
		fw.reload()
	}
}

// setUpWatches registers watches for every data file and its parent directory, resolving
// symlinks so events are matched against the real path fsnotify reports. Failures schedule a
// retry instead of giving up, since a missing directory may simply not exist yet.
func (fw *fileWatcher) setUpWatches(scheduleRetry func()) map[string]bool {
	watchedPaths := make(map[string]bool)
	for _, p := range fw.paths {
		dirPath := path.Dir(p)
		realDirPath, err := filepath.EvalSymlinks(dirPath)
		if err != nil {
			fw.loggers.Errorf(`Unable to evaluate symlinks for "%s": %s`, dirPath, err)
			scheduleRetry()
			continue
		}
		realPath := path.Join(realDirPath, path.Base(p))
		watchedPaths[realPath] = true
		// The file itself may not exist yet; watching its directory still catches its creation.
		_ = fw.watcher.Add(realPath)
		if err := fw.watcher.Add(realDirPath); err != nil {
			fw.loggers.Errorf(`Unable to watch directory "%s" for file "%s": %s`, realDirPath, p, err)
			scheduleRetry()
		}
	}
	return watchedPaths
}

// waitForChange blocks until one of the watched files changes (returning true, meaning the
// caller should reload and re-register watches) or closeCh is closed (returning false).
func (fw *fileWatcher) waitForChange(closeCh <-chan struct{}, retryCh chan struct{}, watchedPaths map[string]bool) bool {
	for {
		select {
		case <-closeCh:
			return false
		case event := <-fw.watcher.Events:
			if !watchedPaths[event.Name] {
				continue
			}
			// A single save typically produces a burst of events; drain them so the file is
			// reloaded once per burst rather than once per event.
			for {
				select {
				case <-fw.watcher.Events:
				default:
					return true
				}
			}
		case err := <-fw.watcher.Errors:
			fw.loggers.Error(err)
		case <-retryCh:
			for {
				select {
				case <-retryCh:
				default:
					return true
				}
			}
		}
	}
}
