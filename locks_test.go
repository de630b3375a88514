package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestReaderWriterLockMutualExclusion(t *testing.T) {
	lock := NewReaderWriterLock()

	var active atomic.Int64
	var wg sync.WaitGroup
	counter := 0

	for _i1 := 0; _i1 < 8; _i1++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i2 := 0; _i2 < 200; _i2++ {
				lock.WriteAcquire()
				assert.Equal(t, int64(1), active.Inc(), "two writers inside the lock")
				counter++
				active.Dec()
				lock.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1600, counter)
}

func TestReaderWriterLockReadersOverlap(t *testing.T) {
	lock := NewReaderWriterLock()
	const readers = 10

	var inside atomic.Int64
	allInside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup

	for _i3 := 0; _i3 < readers; _i3++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.ReadAcquire()
			defer lock.Release()

			if inside.Inc() == readers {
				close(allInside)
			}
			<-release
		}()
	}

	// Every reader must be able to hold the lock at the same time.
	select {
	case <-allInside:
	case <-time.After(2 * time.Second):
		t.Fatal("readers serialized: never all inside the lock at once")
	}

	close(release)
	wg.Wait()
}

func TestReaderWriterLockWriterPriority(t *testing.T) {
	lock := NewReaderWriterLock()

	lock.ReadAcquire() // R1 holds the lock

	writerIn := make(chan struct{})
	go func() {
		lock.WriteAcquire()
		close(writerIn)
	}()

	// Wait for the writer to queue up behind R1.
	require.Eventually(t, func() bool {
		lock.mu.Lock()
		defer lock.mu.Unlock()
		return lock.writesWaiting > 0
	}, 2*time.Second, time.Millisecond)

	// A reader arriving after the writer queued must not be admitted.
	lateReaderIn := make(chan struct{})
	go func() {
		lock.ReadAcquire()
		close(lateReaderIn)
	}()

	select {
	case <-lateReaderIn:
		t.Fatal("late reader admitted ahead of a waiting writer")
	case <-time.After(100 * time.Millisecond):
	}

	// Releasing R1 lets the writer in, still not the reader.
	lock.Release()
	select {
	case <-writerIn:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never acquired after readers drained")
	}

	select {
	case <-lateReaderIn:
		t.Fatal("late reader admitted while the writer held the lock")
	case <-time.After(100 * time.Millisecond):
	}

	// Releasing the writer finally admits the reader.
	lock.Release()
	select {
	case <-lateReaderIn:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never admitted after the writer released")
	}
	lock.Release()
}

func TestReaderWriterLockScopedHelpers(t *testing.T) {
	lock := NewReaderWriterLock()

	ran := false
	lock.WithWrite(func() { ran = true })
	assert.True(t, ran)

	// The lock must be idle again: an immediate writer acquisition
	// succeeds without help.
	done := make(chan struct{})
	go func() {
		lock.WithRead(func() {})
		lock.WithWrite(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scoped helpers leaked a hold")
	}
}
