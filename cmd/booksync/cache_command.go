package main

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"booksync/internal/config"
	"booksync/internal/transcripts"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the transcript cache of an audio directory",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

// openCache opens the cache of an existing audio directory. It refuses to
// create directories for a mistyped path.
func openCache(ctx *commandContext, audioArg string) (*transcripts.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	audioDir, err := config.ExpandPath(strings.TrimSpace(audioArg))
	if err != nil {
		return nil, fmt.Errorf("resolve audio directory: %w", err)
	}
	info, err := os.Stat(audioDir)
	if err != nil {
		return nil, fmt.Errorf("inspect audio directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("audio path %q is not a directory", audioDir)
	}
	return transcripts.Open(cfg.CachePath(audioDir))
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <audio-dir>",
		Short: "List cached transcripts and recorded matches",
		Args:  exactArgs(1, "provide the audio directory. Example: booksync cache list ./audio"),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(ctx, args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			matches, err := store.Matches(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache: %s\n", store.Path())
			if len(entries) == 0 && len(matches) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			fmt.Fprintln(out, renderCache(entries, matches))
			return nil
		},
	}
}

func renderCache(entries []transcripts.Entry, matches map[string]transcripts.Match) string {
	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	appendRow := func(stem string, entry *transcripts.Entry) {
		row := []string{stem, "-", "-", "-", "-", "-", "-", "-"}
		if entry != nil {
			row[1] = entry.Backend
			row[2] = dash(entry.Model)
			row[3] = strconv.Itoa(utf8.RuneCountInString(entry.Text))
			row[7] = entry.CreatedAt.Local().Format(stampLayout)
		}
		if m, ok := matches[stem]; ok {
			row[4] = dash(m.Strategy)
			row[5] = dash(path.Base(m.ChapterID))
			if m.Strategy == transcripts.StrategyTOC {
				row[6] = fmt.Sprintf("title %d", m.TitleScore)
			} else {
				row[6] = fmt.Sprintf("%d/%d", m.Best, m.Second)
			}
		}
		rows = append(rows, row)
	}
	for i := range entries {
		seen[entries[i].Stem] = true
		appendRow(entries[i].Stem, &entries[i])
	}
	// Matches found through the table of contents have no transcript.
	var tocOnly []string
	for stem := range matches {
		if !seen[stem] {
			tocOnly = append(tocOnly, stem)
		}
	}
	slices.Sort(tocOnly)
	for _, stem := range tocOnly {
		appendRow(stem, nil)
	}
	return renderTable("",
		[]string{"Audio", "Backend", "Model", "Chars", "Strategy", "Chapter", "Score", "Cached"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <audio-dir> [stem...]",
		Short: "Remove cached transcripts (all, or only the given audio stems)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(ctx, args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int64
			if stems := args[1:]; len(stems) > 0 {
				removed, err = store.Delete(cmd.Context(), stems...)
			} else {
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached transcript(s)\n", removed)
			return nil
		},
	}
}
