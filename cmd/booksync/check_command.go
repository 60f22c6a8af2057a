package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"booksync/internal/deps"
	"booksync/internal/notifications"
	"booksync/internal/preflight"
)

type checkKind int

const (
	checkOK checkKind = iota
	checkWarn
	checkError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"

	checkLabelWidth = 20
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether external tools and directories are ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cfg)
			writeSection(out, "Dependencies", colorize)
			for _, s := range statuses {
				kind, msg := checkOK, s.Command
				if !s.Available {
					kind, msg = checkError, s.Detail
					if s.Optional {
						kind = checkWarn
						msg += " (optional: " + s.Description + ")"
					}
				}
				fmt.Fprintln(out, renderCheckLine(s.Name, kind, msg, colorize))
			}

			results := preflight.RunAll(cmd.Context(), cfg, "")
			writeSection(out, "Environment", colorize)
			for _, r := range results {
				kind := checkOK
				if !r.Passed {
					kind = checkError
				}
				fmt.Fprintln(out, renderCheckLine(r.Name, kind, r.Detail, colorize))
			}
			if notify {
				results = append(results, checkNotifications(cmd.Context(), notifications.NewService(cfg), cfg.Notifications.NtfyTopic))
				last := results[len(results)-1]
				kind := checkOK
				if !last.Passed {
					kind = checkError
				}
				fmt.Fprintln(out, renderCheckLine(last.Name, kind, last.Detail, colorize))
			}

			missing := deps.MissingRequired(statuses)
			failed := preflight.Failed(results)
			if len(missing) == 0 && len(failed) == 0 {
				return nil
			}
			names := make([]string, 0, len(missing)+len(failed))
			for _, s := range missing {
				names = append(names, s.Name)
			}
			for _, r := range failed {
				names = append(names, r.Name)
			}
			return errors.New("not ready: " + strings.Join(names, ", "))
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Also send a test notification to notifications.ntfy_topic")
	return cmd
}

func checkNotifications(ctx context.Context, svc notifications.Service, topic string) preflight.Result {
	const name = "Notifications"
	if strings.TrimSpace(topic) == "" {
		return preflight.Result{Name: name, Detail: "notifications.ntfy_topic is not set"}
	}
	if err := svc.TestNotification(ctx); err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	return preflight.Result{Name: name, Passed: true, Detail: "test notification sent to " + topic}
}

func renderCheckLine(label string, kind checkKind, message string, colorize bool) string {
	status := checkKindLabel(kind)
	if message != "" {
		status = fmt.Sprintf("[%s] %s", status, message)
	} else {
		status = fmt.Sprintf("[%s]", status)
	}
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, label+":", status)
	if !colorize {
		return line
	}
	switch kind {
	case checkOK:
		return ansiGreen + line + ansiReset
	case checkWarn:
		return ansiYellow + line + ansiReset
	default:
		return ansiRed + line + ansiReset
	}
}

func checkKindLabel(kind checkKind) string {
	switch kind {
	case checkOK:
		return "OK"
	case checkWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

func writeSection(out io.Writer, title string, colorize bool) {
	line := "== " + title + " =="
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
