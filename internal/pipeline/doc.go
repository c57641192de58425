// Package pipeline implements the per-video processing collaborator: the
// VdoCipher, speech-to-text, text processing, and delivery API clients, and
// the Service that sequences them. The coordination core only sees the
// Processor interface and the stage flags it returns.
package pipeline
