/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package statestore

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type session struct {
	Owner    string
	Finished bool
}

func TestStoreRegistration(t *testing.T) {
	store := NewStore()
	sessions := store.Register("sessions")
	store.Register("pending-uploads")
	store.Freeze()

	require.Equal(t, "sessions", sessions.Name())
	require.Same(t, sessions, store.Collection("sessions"))

	require.Panics(t, func() { store.Register("sessions") }, "duplicate registration should panic")
	require.Panics(t, func() { store.Register("late") }, "registration after freeze should panic")
	require.Panics(t, func() { store.Collection("unknown") }, "unknown collection should panic")
}

func TestCollectionReadWriteDelete(t *testing.T) {
	store := NewStore()
	coll := store.Register("sessions")
	store.Freeze()

	_, found := coll.Read("s1")
	require.False(t, found, "missing key is a normal outcome")

	coll.Write("s1", &session{Owner: "alice"})
	rec, found := coll.Read("s1")
	require.True(t, found)
	require.Equal(t, "alice", rec.(*session).Owner)

	require.True(t, coll.Delete("s1"))
	require.False(t, coll.Delete("s1"))
	require.Equal(t, 0, coll.Len())
}

func TestCollectionCompareAndDelete(t *testing.T) {
	store := NewStore()
	coll := store.Register("sessions")
	store.Freeze()

	coll.Write("s1", &session{Owner: "alice", Finished: false})

	deleted := coll.CompareAndDelete("s1", func(record interface{}) bool {
		return record.(*session).Finished
	})
	require.False(t, deleted, "predicate does not hold yet")

	coll.Write("s1", &session{Owner: "alice", Finished: true})
	deleted = coll.CompareAndDelete("s1", func(record interface{}) bool {
		return record.(*session).Finished
	})
	require.True(t, deleted)

	deleted = coll.CompareAndDelete("s1", func(record interface{}) bool { return true })
	require.False(t, deleted, "record is already gone")
}

func TestCollectionCompareAndDeleteAtomicity(t *testing.T) {
	store := NewStore()
	coll := store.Register("sessions")
	store.Freeze()

	const numGoroutines = 50
	coll.Write("s1", &session{Finished: true})

	var deletions int32
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if coll.CompareAndDelete("s1", func(record interface{}) bool {
				return record.(*session).Finished
			}) {
				atomic.AddInt32(&deletions, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), deletions, "exactly one concurrent caller should win the delete")
	_, found := coll.Read("s1")
	require.False(t, found)
}

func TestCollectionMutate(t *testing.T) {
	store := NewStore()
	coll := store.Register("counters")
	store.Freeze()

	// Upsert on missing key.
	err := coll.Mutate("hits", func(record interface{}, found bool) (interface{}, bool, error) {
		require.False(t, found)
		return 1, true, nil
	})
	require.NoError(t, err)

	// Read-modify-write.
	err = coll.Mutate("hits", func(record interface{}, found bool) (interface{}, bool, error) {
		require.True(t, found)
		return record.(int) + 1, true, nil
	})
	require.NoError(t, err)

	rec, found := coll.Read("hits")
	require.True(t, found)
	require.Equal(t, 2, rec)

	// Callback error leaves the record untouched.
	someErr := errors.New("no way")
	err = coll.Mutate("hits", func(record interface{}, found bool) (interface{}, bool, error) {
		return nil, false, someErr
	})
	require.ErrorIs(t, err, someErr)
	rec, found = coll.Read("hits")
	require.True(t, found)
	require.Equal(t, 2, rec)

	// keep=false removes the record.
	err = coll.Mutate("hits", func(record interface{}, found bool) (interface{}, bool, error) {
		return nil, false, nil
	})
	require.NoError(t, err)
	_, found = coll.Read("hits")
	require.False(t, found)
}

func TestCollectionMutateConcurrentIncrements(t *testing.T) {
	store := NewStore()
	coll := store.Register("counters")
	store.Freeze()

	const numGoroutines = 100
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_ = coll.Mutate("hits", func(record interface{}, found bool) (interface{}, bool, error) {
				if !found {
					return 1, true, nil
				}
				return record.(int) + 1, true, nil
			})
		}()
	}
	wg.Wait()

	rec, found := coll.Read("hits")
	require.True(t, found)
	require.Equal(t, numGoroutines, rec, "read-modify-write must not lose increments")
}

func TestCollectionsDoNotDeadlockUnderInterleaving(t *testing.T) {
	store := NewStore()
	collA := store.Register("a")
	collB := store.Register("b")
	store.Freeze()

	// Randomized interleavings of single-collection operations on two
	// collections. Each operation holds exactly one lock, so no ordering
	// of goroutines can produce a cycle.
	const numGoroutines = 16
	const opsPerGoroutine = 500

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for j := 0; j < opsPerGoroutine; j++ {
				first, second := collA, collB
				if rnd.Intn(2) == 0 {
					first, second = collB, collA
				}
				key := fmt.Sprintf("key:%d", rnd.Intn(10))
				first.Write(key, j)
				// First lock is released before the second is taken.
				second.CompareAndDelete(key, func(record interface{}) bool {
					return record.(int)%2 == 0
				})
			}
		}(int64(i))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock: interleaved operations on two collections did not finish")
	}
}
