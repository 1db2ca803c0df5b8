package config

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector lets tests inject synthetic change events without touching
// poll timing.
type fakeDetector struct {
	trigger chan struct{}
	err     error
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{trigger: make(chan struct{})}
}

func (d *fakeDetector) Watch(events chan<- struct{}) error {
	for range d.trigger {
		events <- struct{}{}
	}
	return d.err
}

func (d *fakeDetector) Close() {
	close(d.trigger)
}

// recorder collects watch events for assertions.
type recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *recorder) onChange(record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *recorder) at(i int) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[i]
}

func TestWatchEmitsInitialEventFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	detector := newFakeDetector()
	defer detector.Close()

	rec := &recorder{}
	require.NoError(t, store.WatchWithDetector(detector, rec.onChange))

	// The initial event is synchronous: it must be visible before any
	// synthetic modification is injected.
	require.Equal(t, 1, rec.len())
	assert.False(t, rec.at(0).OnboardingComplete)
}

func TestWatchCreatesMissingFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	detector := newFakeDetector()
	defer detector.Close()

	_, err := os.Stat(store.Path())
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.WatchWithDetector(detector, (&recorder{}).onChange))

	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestExternalEditTriggersExactlyOneChange(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	detector := newFakeDetector()
	defer detector.Close()

	rec := &recorder{}
	require.NoError(t, store.WatchWithDetector(detector, rec.onChange))
	require.Equal(t, 1, rec.len())

	// Simulate another process editing the settings file.
	require.NoError(t, os.WriteFile(store.Path(), []byte("onboardingComplete = true\n"), 0600))
	detector.trigger <- struct{}{}

	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)
	updated := rec.at(1)
	assert.True(t, updated.OnboardingComplete)

	// Snapshot converged with the file.
	assert.True(t, store.Get().OnboardingComplete)

	// No extra events beyond the one edit.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rec.len())
}

func TestWatchSurvivesMalformedEdit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	detector := newFakeDetector()
	defer detector.Close()

	rec := &recorder{}
	require.NoError(t, store.WatchWithDetector(detector, rec.onChange))

	require.NoError(t, os.WriteFile(store.Path(), []byte("not [valid toml"), 0600))
	detector.trigger <- struct{}{}

	require.NoError(t, os.WriteFile(store.Path(), []byte("enableAnalytics = true\n"), 0600))
	detector.trigger <- struct{}{}

	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, rec.at(1).EnableAnalytics)
}

func TestDetectorFailureTerminatesWatcherOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	detector := newFakeDetector()
	detector.err = errors.New("watch backend failed")

	rec := &recorder{}
	require.NoError(t, store.WatchWithDetector(detector, rec.onChange))

	detector.Close()

	// The watcher goroutine exits; the store itself keeps working.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.len())
	assert.NotNil(t, store.Get())
}

func TestPollDetectorObservesContentChange(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("enableAnalytics = false\n"), 0600))

	detector := newPollDetector(store.Path(), 10*time.Millisecond)
	defer detector.Close()

	events := make(chan struct{}, 1)
	go func() {
		_ = detector.Watch(events)
	}()

	// Same content: no event within a few polls.
	select {
	case <-events:
		t.Fatal("detector fired without a content change")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(store.Path(), []byte("enableAnalytics = true\n"), 0600))

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("detector did not observe the content change")
	}
}
