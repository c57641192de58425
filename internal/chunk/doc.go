// Package chunk defines the on-disk chunk layout: the id list files the
// coordinator hands to workers, the completion markers that make reruns
// idempotent, and the per-chunk log files. All coordination state lives in
// these three file kinds; nothing here talks to the network or the ledger.
package chunk
