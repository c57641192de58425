// Package services defines the error taxonomy and context annotations shared
// across sluice components.
//
// Sentinel errors classify failures by blast radius: configuration errors
// abort a run before dispatch, not-found errors fail a single operation,
// item-processing errors are absorbed by the worker, and ledger corruption is
// surfaced to the operator with an explicit repair path. Wrap attaches
// component/operation context while preserving the sentinel for errors.Is
// checks.
package services
