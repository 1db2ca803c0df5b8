// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/popcorntime/session/pkg/logger"
)

// watchPollInterval is how often the poll detector re-reads the settings
// file looking for content changes.
const watchPollInterval = 2 * time.Second

// ChangeDetector signals content changes of the settings file.
//
// The production implementation is a poll loop over a content hash rather
// than OS file-system events: notification semantics differ enough between
// platforms (and between editors doing rename-replace writes) that polling
// is the portable choice for a file this small.
type ChangeDetector interface {
	// Watch blocks, sending one value on events for every detected content
	// change, until an error occurs or Close is called.
	Watch(events chan<- struct{}) error

	// Close stops the detector and unblocks Watch.
	Close()
}

type pollDetector struct {
	path     string
	interval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newPollDetector(path string, interval time.Duration) *pollDetector {
	return &pollDetector{
		path:     path,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (d *pollDetector) Watch(events chan<- struct{}) error {
	last, err := contentHash(d.path)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return nil
		case <-ticker.C:
			current, err := contentHash(d.path)
			if err != nil {
				return err
			}
			if current != last {
				last = current
				select {
				case events <- struct{}{}:
				case <-d.done:
					return nil
				}
			}
		}
	}
}

func (d *pollDetector) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

// contentHash hashes the file content. A missing file hashes like an empty
// one so a delete-then-recreate cycle still registers as a change.
func contentHash(path string) ([32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// WatchInBackground watches the settings file for external edits and calls
// onChange with the freshly loaded record after each one, replacing the
// in-memory snapshot first.
//
// The file is created empty if absent, and one synthetic "initial" event is
// delivered synchronously before any "modified" event. A detector failure
// terminates the watcher (logged); it is not restarted automatically, the
// caller must invoke WatchInBackground again.
func (s *Store) WatchInBackground(onChange func(Record)) error {
	return s.WatchWithDetector(newPollDetector(s.path, watchPollInterval), onChange)
}

// WatchWithDetector is WatchInBackground with an injected change detector.
func (s *Store) WatchWithDetector(detector ChangeDetector, onChange func(Record)) error {
	// Make sure the file exists so the detector has something to poll.
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := os.WriteFile(s.path, nil, 0600); err != nil {
			return fmt.Errorf("unable to create settings file: %w", err)
		}
	}

	// Send the initial record before watching so subscribers always observe
	// the current state first.
	record, err := Load(s.path)
	if err != nil {
		return err
	}
	logger.Infof("settings file initialized at %s", s.path)
	onChange(record)

	events := make(chan struct{})

	go func() {
		for range events {
			record, err := Load(s.path)
			if err != nil {
				logger.Errorf("failed to reload settings file %s: %v", s.path, err)
				continue
			}
			logger.Info("settings file modified; refreshing settings")
			s.replaceSnapshot(record)
			onChange(record.clone())
		}
	}()

	go func() {
		defer close(events)
		if err := detector.Watch(events); err != nil {
			logger.Errorf("error watching settings file %s - watcher terminated: %v", s.path, err)
		}
	}()

	return nil
}
