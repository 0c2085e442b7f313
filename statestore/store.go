/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package statestore

import (
	"fmt"
	"sync"
)

// Store is a registry of named collections.
// All collections are registered at startup, then the store is frozen.
type Store struct {
	mu          sync.Mutex
	frozen      bool
	collections map[string]*Collection

	metricsCollector MetricsCollector
}

// NewStore creates a new Store with disabled metrics.
func NewStore() *Store {
	return NewStoreWithMetrics(nil)
}

// NewStoreWithMetrics creates a new Store.
// Metrics collector may be nil, in this case metrics are disabled.
func NewStoreWithMetrics(metricsCollector MetricsCollector) *Store {
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Store{
		collections:      make(map[string]*Collection),
		metricsCollector: metricsCollector,
	}
}

// Register creates a new named collection.
// It panics if the store is already frozen or the name is already taken:
// collection set is static and is supposed to be fully known at startup.
func (s *Store) Register(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		panic(fmt.Sprintf("statestore: collection %q registered after the store was frozen", name))
	}
	if _, ok := s.collections[name]; ok {
		panic(fmt.Sprintf("statestore: collection %q is already registered", name))
	}
	coll := &Collection{
		name:             name,
		contents:         make(map[string]interface{}),
		metricsCollector: s.metricsCollector,
	}
	s.collections[name] = coll
	return coll
}

// Freeze forbids further registrations.
func (s *Store) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Collection returns a registered collection by name.
// Unknown name is a programming error and panics; handler code is supposed to
// refer only to collections registered at startup.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		panic(fmt.Sprintf("statestore: unknown collection %q", name))
	}
	return coll
}

// Collection is a named map of records guarded by its own exclusive lock.
// All access to the contents goes through the methods below; no code path
// may touch the map bypassing the lock.
type Collection struct {
	name     string
	mu       sync.Mutex
	contents map[string]interface{}

	metricsCollector MetricsCollector
}

// MutateFunc is a read-modify-write callback for Collection.Mutate.
// It receives the current record (found=false and nil record if the key is absent)
// and returns the record to store. Returning keep=false removes the record.
// The callback runs under the collection lock and must not block on external I/O
// or call into another collection.
type MutateFunc func(record interface{}, found bool) (newRecord interface{}, keep bool, err error)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Read returns a record by key. Missing key is a normal outcome, not an error.
func (c *Collection) Read(key string) (record interface{}, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, found = c.contents[key]
	return record, found
}

// Write upserts a record by key.
func (c *Collection) Write(key string, record interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contents[key] = record
	c.metricsCollector.SetAmount(c.name, len(c.contents))
}

// Delete removes a record by key and reports whether it was present.
func (c *Collection) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.contents[key]; !ok {
		return false
	}
	delete(c.contents, key)
	c.metricsCollector.SetAmount(c.name, len(c.contents))
	return true
}

// CompareAndDelete removes a record only if the predicate holds for it.
// Predicate check and deletion happen under one lock acquisition, so no
// concurrent caller can observe a state where the predicate held but the
// record was still present.
func (c *Collection) CompareAndDelete(key string, predicate func(record interface{}) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.contents[key]
	if !ok || !predicate(record) {
		return false
	}
	delete(c.contents, key)
	c.metricsCollector.SetAmount(c.name, len(c.contents))
	return true
}

// Mutate performs a read-modify-write of one record under one lock acquisition.
func (c *Collection) Mutate(key string, fn MutateFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, found := c.contents[key]
	newRecord, keep, err := fn(record, found)
	if err != nil {
		return err
	}
	if keep {
		c.contents[key] = newRecord
	} else if found {
		delete(c.contents, key)
	}
	c.metricsCollector.SetAmount(c.name, len(c.contents))
	return nil
}

// Range calls fn for every record under the collection lock until fn returns false.
// fn must follow the same restrictions as MutateFunc.
func (c *Collection) Range(fn func(key string, record interface{}) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, record := range c.contents {
		if !fn(key, record) {
			return
		}
	}
}

// Len returns the number of records in the collection.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contents)
}
