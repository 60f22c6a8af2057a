package main

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"booksync/internal/config"
	"booksync/internal/language"
	"booksync/internal/pipeline"
	"booksync/internal/services"
)

func printReport(out io.Writer, report *pipeline.Report, matching config.Matching, matchOnly bool) {
	title := strings.TrimSpace(report.Title)
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(out, "Book:     %s (%s)\n", title, language.DisplayName(report.Language))
	switch {
	case report.Strategy == "":
		fmt.Fprintln(out, "Strategy: none (nothing to match)")
	case report.FallbackReason != "":
		fmt.Fprintf(out, "Strategy: %s (fallback: %s)\n", report.Strategy, report.FallbackReason)
	default:
		fmt.Fprintf(out, "Strategy: %s\n", report.Strategy)
	}
	if !matchOnly {
		fmt.Fprintf(out, "Output:   %s\n", report.OutputDir)
	}

	rows := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, []string{
			row.Audio.Stem,
			dash(row.Strategy),
			dash(path.Base(row.ChapterID)),
			score(row.TitleScore, row.Strategy == pipeline.StrategyTOC),
			score(row.Best, row.Strategy == pipeline.StrategyTranscript),
			score(row.Second, row.Strategy == pipeline.StrategyTranscript),
			string(row.Status),
			rowNote(row),
		})
	}
	fmt.Fprintln(out, renderTable("",
		[]string{"Audio", "Strategy", "Chapter", "Title", "Best", "Second", "Status", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))

	if matchOnly {
		fmt.Fprintf(out, "Best < %d or a second best within %d of best means the match may be wrong.\n",
			matching.MinScore, matching.MinMargin)
		return
	}
	fmt.Fprintf(out, "Written %d, skipped %d, failed %d, unmatched %d\n",
		report.Count(pipeline.StatusWritten),
		report.Count(pipeline.StatusSkipped),
		report.Count(pipeline.StatusFailed),
		report.Count(pipeline.StatusUnmatched),
	)
	if report.VideoSkipped != "" {
		fmt.Fprintf(out, "Video skipped: %s\n", report.VideoSkipped)
	}
}

func rowNote(row pipeline.Row) string {
	var notes []string
	if row.Err != nil {
		notes = append(notes, fmt.Sprintf("%s: %v", services.Classify(row.Err), row.Err))
	}
	if row.LowConfidence {
		notes = append(notes, "low confidence ("+strings.Join(row.Reasons, ", ")+")")
	}
	if row.VideoErr != nil {
		notes = append(notes, fmt.Sprintf("video %s: %v", services.Classify(row.VideoErr), row.VideoErr))
	} else if row.VideoPath != "" {
		notes = append(notes, "video written")
	}
	return strings.Join(notes, "; ")
}

// score prints "-" for values the row's strategy does not produce. Title is
// the audio name to TOC title similarity; Best and Second compare the
// transcript with chapter text.
func score(v int, applies bool) string {
	if !applies {
		return "-"
	}
	return strconv.Itoa(v)
}

func dash(s string) string {
	if s == "" || s == "." {
		return "-"
	}
	return s
}
