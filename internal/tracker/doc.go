// Package tracker reconciles chunk completion markers with the ledger.
package tracker
