// Package services defines shared utilities consumed by the pipeline stages and
// the wrappers around external tools.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and the audio file being
//     processed for logging.
//   - Structured error markers plus the Wrap helper so failures carry the
//     stage and operation that produced them, and Classify to turn them into
//     short report labels.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
