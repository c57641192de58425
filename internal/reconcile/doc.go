// Package reconcile extracts the ids that still need processing after a run.
package reconcile
