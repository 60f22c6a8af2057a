package subtitles

import (
	"testing"
	"time"
)

func sec(n float64) time.Duration { return time.Duration(n * float64(time.Second)) }

func TestPadEnds(t *testing.T) {
	tests := []struct {
		name string
		in   [][2]float64
		pad  float64
		want [][2]float64
	}{
		{"empty", nil, 3, nil},
		{"gap smaller than pad", [][2]float64{{0, 10}, {12, 20}}, 3, [][2]float64{{0, 12}, {12, 23}}},
		{"gap larger than pad", [][2]float64{{0, 10}, {15, 20}}, 3, [][2]float64{{0, 13}, {15, 23}}},
		{"touching cues", [][2]float64{{0, 10}, {10, 20}}, 3, [][2]float64{{0, 10}, {10, 23}}},
		{"overlap left alone", [][2]float64{{0, 11}, {10, 20}}, 3, [][2]float64{{0, 11}, {10, 23}}},
		{"zero pad", [][2]float64{{0, 10}, {12, 20}}, 0, [][2]float64{{0, 10}, {12, 20}}},
		{"single cue", [][2]float64{{1, 2}}, 0.25, [][2]float64{{1, 2.25}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]Cue, len(tt.in))
			for i, span := range tt.in {
				in[i] = Cue{Index: i + 1, Start: sec(span[0]), End: sec(span[1]), Text: "x"}
			}
			got := PadEnds(in, sec(tt.pad))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d cues, want %d", len(got), len(tt.want))
			}
			for i, span := range tt.want {
				if got[i].Start != sec(span[0]) || got[i].End != sec(span[1]) {
					t.Errorf("cue %d = (%v, %v), want (%v, %v)", i, got[i].Start, got[i].End, sec(span[0]), sec(span[1]))
				}
			}
			for i := range in {
				if in[i].End != sec(tt.in[i][1]) {
					t.Fatalf("input cue %d was modified", i)
				}
			}
		})
	}
}

func TestPadEndsInvariants(t *testing.T) {
	in := []Cue{
		{Start: 0, End: 900 * time.Millisecond},
		{Start: 1 * time.Second, End: 2 * time.Second},
		{Start: 2 * time.Second, End: 2500 * time.Millisecond},
		{Start: 4 * time.Second, End: 6 * time.Second},
	}
	got := PadEnds(in, 250*time.Millisecond)
	for i := range got {
		if got[i].Start != in[i].Start {
			t.Fatalf("cue %d start moved", i)
		}
		if got[i].End < in[i].End {
			t.Fatalf("cue %d shrank", i)
		}
		if i+1 < len(got) && got[i].End > got[i+1].Start {
			t.Fatalf("cue %d overlaps next: %v > %v", i, got[i].End, got[i+1].Start)
		}
	}
}
