// Package coordinator drives a full run: chunk discovery, marker-based
// skipping, bounded-parallel dispatch of worker processes, and periodic
// progress reporting. All coordination state lives on the filesystem, so a
// coordinator can die mid-run and a fresh one resumes from markers and the
// ledger alone.
package coordinator
