/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package statestore provides process-wide named collections of records,
// each guarded by its own exclusive lock.
//
// Instead of composing raw read/write pairs around a shared map (the classic
// source of check-then-delete races), callers use atomic verbs: Read, Write,
// Delete, CompareAndDelete, and Mutate. Every operation acquires the
// collection's lock for its full duration, so all operations on one
// collection are linearizable with respect to each other.
//
// Collections are registered at startup and the store is then frozen;
// asking for an unregistered collection is a programming error and panics.
// A missing key, on the other hand, is a normal outcome reported via a
// found flag.
//
// Lock-ordering rule: a call path may hold at most one collection lock at a
// time. Callbacks passed to CompareAndDelete and Mutate must not call into
// another collection and must not block on external I/O. Operations across
// different collections are not globally ordered; callers must not depend on
// cross-collection atomicity.
package statestore
