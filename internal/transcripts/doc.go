// Package transcripts persists rough transcripts and match results in a
// SQLite database next to the audio files.
//
// A transcript is keyed by audio stem and trusted until deleted: the
// pipeline reads before it transcribes and writes only on a miss. Match
// results from the last run are kept alongside so `cache list` can show
// which chapter each audio file was assigned.
package transcripts
