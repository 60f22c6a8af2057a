package main

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"booksync/internal/config"
	"booksync/internal/pipeline"
	"booksync/internal/textseg"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var chapter string
	var maxLength int

	cmd := &cobra.Command{
		Use:   "segment <ebook>",
		Short: "Print the subtitle lines produced for each chapter",
		Args:  exactArgs(1, "provide the e-book path. Example: booksync segment book.epub"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			ebookPath, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve e-book path: %w", err)
			}

			segCfg := cfg.Segmenter
			if maxLength > 0 {
				segCfg.MaxLineLength = maxLength
			}
			_, chapters, err := pipeline.LoadChapters(ebookPath, textseg.New(segCfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			want := strings.TrimSpace(chapter)
			printed := 0
			for _, ch := range chapters {
				if want != "" && ch.ID != want && path.Base(ch.ID) != want {
					continue
				}
				fmt.Fprintf(out, "== %s (%d lines) ==\n", ch.ID, len(ch.Lines))
				for _, line := range ch.Lines {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out)
				printed++
			}
			if printed == 0 {
				return fmt.Errorf("chapter %q not found; run booksync segment without --chapter to list chapters", want)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chapter, "chapter", "", "Only print the chapter with this ID or file name")
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "Override segmenter.max_line_length")
	return cmd
}
