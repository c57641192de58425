// Package logging builds slog loggers with console and JSON handlers and the
// attribute helpers used throughout sluice.
//
// The console handler renders one record per line with the component
// attribute hoisted into the message prefix. Context helpers surface chunk,
// video id, and correlation id annotations as structured fields so the
// coordinator log can be filtered by the same keys the per-chunk logs use.
package logging
