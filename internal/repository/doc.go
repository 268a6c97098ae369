// Package repository defines the data access interfaces for fabricviz.
//
// Topology itself is never persisted; the only stored data is the telemetry
// sample log fed by snapshot metrics. The actual implementation is in the
// sqlite subpackage.
//
// # SQLite Implementation
//
// The sqlite implementation uses the pure-Go modernc.org/sqlite driver, so
// the binary builds without cgo. The schema is migrated on open and samples
// are pruned to a bounded count.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
