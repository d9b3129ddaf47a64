// Package usage records metered events into period aggregates.
//
// Recording an event normalizes its quantity into micro-units and applies
// atomic increments to the aggregates it affects:
//
//   - primary: the actor's total-cost, and total-storage when the usage type
//     is a storage type. A failed primary write fails the call.
//   - auxiliary: the per-usage-type breakdown (units, cost, count), the
//     actor's per-app cost and count, the app-wide cost and count, and the
//     platform-wide total under the global actor. These are best-effort:
//     failures are logged and counted but never fail the call.
//
// Recording is not idempotent; every call adds. There is no in-process
// serialization: concurrent calls for the same actor are safe because each
// write is a single add-and-fetch in the store.
//
// The primary writes are independent increments, not a transaction. If the
// cost increment succeeds and the storage increment fails, the cost stays
// counted and the call reports an error.
package usage
