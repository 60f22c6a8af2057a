// Package language normalizes language codes and detects the language of
// chapter text.
//
// Config values, CLI flags, and detected languages all pass through ToISO2 so
// the aligner always receives an ISO 639-1 code. Detect samples the start of
// the book text with whatlanggo and falls back to Japanese when the sample is
// empty or the detector has no answer.
package language
