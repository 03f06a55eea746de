// Package history implements a bounded, linear undo/redo log over an
// opaque state type.
//
// The log is a flat sequence with one cursor. Executing a new action while
// the cursor is not at the tail discards the redo branch first. States are
// deep-copied on the way in and on the way out, so mutating a live value
// can never rewrite recorded history.
//
// Thread-safety: a Manager serializes all operations on an internal mutex.
// State writes made by undo/redo through the Apply hook are not recorded.
package history
