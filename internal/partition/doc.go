// Package partition splits a flat list of video ids into numbered chunk
// files for parallel processing.
package partition
