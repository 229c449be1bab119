// Package transcript defines the persisted data model of a recording — its
// segments, transcript, and summary — together with the placeholder and
// batch-tag conventions, and a durable JSON file store with read-modify-write
// update semantics keyed by recording base name.
package transcript
