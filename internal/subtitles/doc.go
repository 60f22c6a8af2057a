// Package subtitles holds the SRT cue model, its text codec, and the cue end
// padding applied after forced alignment.
//
// Cues are written atomically: Write renders to a temporary file in the
// destination directory and renames it into place, so a failed chapter never
// leaves a partial subtitle file behind.
package subtitles
