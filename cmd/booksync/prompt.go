package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"booksync/internal/matcher"
)

// promptConfirmer asks on the terminal whether a TOC mapping may be used.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptConfirmer(in *bufio.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: in, out: out}
}

func (p *promptConfirmer) ConfirmTOC(ctx context.Context, proposals []matcher.Proposal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintln(p.out, "Proposed chapter mapping from the table of contents:")
	fmt.Fprintln(p.out, renderProposals(proposals))
	fmt.Fprint(p.out, "Use this chapter mapping? [Y/n] ")

	answer, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
	}
	return parseConfirmation(answer), nil
}

// parseConfirmation treats anything but an explicit no as yes.
func parseConfirmation(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "n", "no":
		return false
	default:
		return true
	}
}

func renderProposals(proposals []matcher.Proposal) string {
	rows := make([][]string, 0, len(proposals))
	for _, p := range proposals {
		rows = append(rows, []string{
			p.Audio.Stem,
			p.Link.Title,
			path.Base(p.Chapter.ID),
			strconv.Itoa(p.Score),
		})
	}
	return renderTable("", []string{"Audio", "TOC entry", "Chapter", "Score"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}
