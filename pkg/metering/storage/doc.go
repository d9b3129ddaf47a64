// Package storage persists period aggregates.
//
// Every aggregate is a single signed 64-bit counter addressed by a key from
// the period package. The engine never reads a counter to compute its next
// value: all writes go through IncrBy, which must be an atomic add-and-fetch
// in the backing store. An absent key is equivalent to zero.
//
// Backends:
//
//   - MemoryBackend: process-local map, for tests and single-process use.
//   - SQLiteBackend: embedded durable store (modernc.org/sqlite, WAL mode).
//   - RedisBackend: shared store across processes (INCRBY / GET).
//   - PostgresBackend: relational store (pgx, UPSERT ... RETURNING).
//
// Bounded wraps any backend with a per-operation timeout and turns every
// failure into an *Error that matches ErrUnavailable.
package storage
