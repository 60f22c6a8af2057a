package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"booksync/internal/config"
	"booksync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	ebook      string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("BOOKSYNC_LANGUAGE", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	ebook := filepath.Join(base, "book.epub")
	testsupport.WriteEPUB(t, ebook, testsupport.EPUB{
		Title:    "猫",
		Language: "ja",
		Nav:      true,
		Chapters: []testsupport.EPUBChapter{
			{Name: "ch01.xhtml", Title: "第一章", Paragraphs: []string{"吾輩は猫である。名前はまだ無い。"}},
			{Name: "ch02.xhtml", Title: "第二章", Paragraphs: []string{"親譲りの無鉄砲で小供の時から損ばかりしている。"}},
		},
	})

	return &cliTestEnv{cfg: cfg, configPath: configPath, ebook: ebook}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf("[paths]\nwork_dir = %q\nlog_dir = %q\n\n[book]\nlanguage = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Book.Language,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func (e *cliTestEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, stdin, append([]string{"--config", e.configPath}, args...)...)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func withTerminalStdin(t *testing.T) {
	t.Helper()
	prev := stdinIsTerminal
	stdinIsTerminal = func() bool { return true }
	t.Cleanup(func() { stdinIsTerminal = prev })
}
