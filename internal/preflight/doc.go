// Package preflight provides readiness checks for the external services and
// filesystem paths booksync depends on.
//
// The sync command calls RunAll before taking the output lock so a run with
// an unwritable output directory or a rejected API key stops before any
// transcription starts. The check command reuses the individual checks to
// print a status table.
package preflight
