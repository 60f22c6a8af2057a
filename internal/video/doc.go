// Package video renders a still-image video from the book cover, a chapter's
// narration and its subtitles, with ffmpeg. The subtitles are embedded as a
// soft mov_text track so players can toggle them.
package video
