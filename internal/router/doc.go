// Package router turns raw exchange feed frames into table writes.
//
// Frames are parsed into ticker updates and held in a Queue for one
// batch window. When the window closes the buffer is drained, updates are
// collapsed to the last one per symbol, and each survivor is written to the
// market table.
package router
