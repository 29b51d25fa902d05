// Package docstore persists JSON documents on the local filesystem.
//
// A document is one JSON file whose top-level value is an object or array.
// Every operation — including plain loads — runs under a single injected
// lock, so read-modify-write cycles are linearized and a reader can never
// observe a document mid-write.
//
// It currently supports:
//   - Lenient loads (missing/corrupt files substitute a default)
//   - Strict saves and atomic read-modify-write updates
//   - Multi-document critical sections (Batch) for cascade operations
package docstore
