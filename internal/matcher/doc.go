// Package matcher pairs audio files with e-book chapters.
//
// Two strategies produce the same []Pair output. MatchTOC maps audio names
// onto the book's table of contents and only counts when a Confirmer accepts
// the proposal. MatchTranscripts scores each rough transcript against every
// chapter text and keeps the best and second-best similarity; Policy turns
// those scores into a low-confidence flag for operators.
package matcher
