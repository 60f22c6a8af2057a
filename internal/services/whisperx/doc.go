// Package whisperx runs WhisperX through uvx to produce rough transcripts.
//
// The transcripts are only used to decide which chapter an audio file
// narrates, so the defaults favor a small, fast model. Options (model, CUDA,
// VAD method) come from Config; tests replace the external command with
// WithCommandRunner.
package whisperx
