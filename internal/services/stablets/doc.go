// Package stablets aligns known chapter text to narration with stable-ts.
//
// Loading the alignment model dominates the cost of a run, so the Aligner
// keeps a single Python worker alive and feeds it one chapter at a time over
// a JSON-lines pipe. Each request writes an SRT file which is parsed back
// into cues.
package stablets
