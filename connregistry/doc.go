/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package connregistry tracks long-lived client connections and fans
// messages out to them through bounded per-connection queues.
//
// Each attached connection gets an id and a receive channel. Publishing to a
// connection whose queue is full drops the OLDEST queued message in favor of
// the new one: receivers that fell behind see fresh data with gaps rather
// than stale data, and every drop is counted and logged.
//
// Connections are detached explicitly, by a failed publish, or by the
// heartbeat sweeper; all three paths converge on the same internal routine,
// so detaching an already-detached connection is always a no-op.
package connregistry
