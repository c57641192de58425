// Package inspect builds read-only views over run state: the per-chunk
// status report and the chunk log viewer. Nothing here mutates the ledger,
// markers, or logs.
package inspect
