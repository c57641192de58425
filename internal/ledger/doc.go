// Package ledger persists per-video pipeline outcomes. The default backend is
// a flat CSV file guarded by a sidecar file lock; a SQLite backend with the
// same semantics is available for runs large enough to make full-file
// rewrites painful. Both expose the Repository interface so callers never
// care which one is in use.
package ledger
