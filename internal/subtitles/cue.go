package subtitles

import "time"

// Cue is one timed subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// PadEnds widens each cue by extending its end by up to pad, limited by the
// gap to the next cue's start. Starts never move and the last cue always
// receives the full pad. Overlapping input gains nothing for that pair.
// The input slice is not modified.
func PadEnds(cues []Cue, pad time.Duration) []Cue {
	out := make([]Cue, len(cues))
	copy(out, cues)
	if pad <= 0 {
		return out
	}
	for i := range out {
		if i == len(out)-1 {
			out[i].End += pad
			break
		}
		gap := out[i+1].Start - out[i].End
		if gap <= 0 {
			continue
		}
		out[i].End += min(pad, gap)
	}
	return out
}
