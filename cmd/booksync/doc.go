// Package main hosts the booksync CLI.
//
// The Cobra command tree loads configuration once per invocation, builds the
// transcription, alignment, and video collaborators for the selected backend,
// and hands them to the pipeline. Commands only render results and map them to
// exit codes; matching, alignment, and caching live in internal packages.
package main
