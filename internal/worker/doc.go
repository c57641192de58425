// Package worker runs the per-chunk processing loop.
package worker
