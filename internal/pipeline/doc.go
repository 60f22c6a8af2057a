// Package pipeline sequences a sync run: read the e-book, find the audio,
// match the two, align each chapter, and write subtitle files.
//
// A run holds an flock on the output directory for its whole duration.
// Transcription for matching runs in a bounded worker pool; alignment runs
// strictly one chapter at a time on a single aligner. Per-chapter failures
// become report rows instead of aborting the run, so the caller decides the
// exit status from the Report.
package pipeline
