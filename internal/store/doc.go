// Package store routes object operations across a set of storage drivers.
//
// A Store holds two independently configured, ordered driver sets: data
// drivers and log drivers. Each registration declares which reads the
// driver is authoritative for.
//
// # Read Routing
//
// Get, Query and Search are served by exactly one driver: the one whose
// authority includes the operation. Other drivers are not consulted. With
// no authoritative driver the read fails with DriverUnavailable.
//
// # Write Fan-Out
//
// Put and Delete go to every data driver concurrently. The call succeeds
// only if every driver succeeds; otherwise the first error is returned.
// Drivers that already completed are NOT rolled back. Multi-driver writes
// are best effort, not transactional.
//
// # Audit Log
//
// After every Put and Delete attempt an audit entry is written to every log
// driver with the same fan-out discipline. Log failures are logged and
// dropped; they never fail the primary operation. Entries carry a ULID and
// a monotonic seq so that GetLog can return them newest first.
package store
