// Package dispatcher runs the tagger once per chunk, all chunks concurrently.
//
// Each worker feeds its chunk's file list to the tagger on stdin and has the
// tagger write into a private temp file inside a run-scoped directory. The
// directory is removed when Dispatch returns. Results are collected into a
// slice indexed by chunk, so no locking is needed and output order never
// depends on completion order.
//
// A failing tagger only affects its own chunk. Workers are never canceled
// because a sibling failed; only the caller's context can stop them.
package dispatcher
