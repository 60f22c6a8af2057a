package stablets

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	langpkg "booksync/internal/language"
	"booksync/internal/services"
	"booksync/internal/subtitles"
)

// External command settings.
const (
	Command       = "uvx"
	Package       = "stable-ts"
	DefaultModel  = "large-v3"
	CUDAIndexURL  = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL  = "https://pypi.org/simple"
	CPUDevice     = "cpu"
	CUDADevice    = "cuda"
	stderrTailMax = 4096
)

// ErrClosed is returned by Align after Close or after the worker died.
var ErrClosed = errors.New("aligner closed")

// Config captures runtime settings for the alignment worker.
type Config struct {
	Model       string
	CUDAEnabled bool
	// WorkDir receives the per-chapter SRT files written by the worker.
	WorkDir string
}

// Process is a running worker: requests go to Stdin, replies come from
// Stdout, and Wait reaps it after Stdin is closed.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Wait   func() error
}

// Starter launches the worker command.
type Starter func(ctx context.Context, name string, args ...string) (*Process, error)

// Aligner owns one stable-ts worker. It is safe for sequential use from
// several goroutines but aligns one chapter at a time.
type Aligner struct {
	cfg     Config
	start   Starter
	stderr  *tailBuffer
	mu      sync.Mutex
	proc    *Process
	replies *bufio.Reader
	broken  error
}

// New returns an aligner. The worker is not started until Prepare or the
// first Align call.
func New(cfg Config) *Aligner {
	a := &Aligner{cfg: cfg, stderr: &tailBuffer{max: stderrTailMax}}
	a.start = a.execStarter
	return a
}

// WithStarter replaces process creation (for testing).
func (a *Aligner) WithStarter(start Starter) {
	a.start = start
}

// Model returns the configured model name.
func (a *Aligner) Model() string {
	if strings.TrimSpace(a.cfg.Model) != "" {
		return a.cfg.Model
	}
	return DefaultModel
}

type request struct {
	Audio    string `json:"audio"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Output   string `json:"output"`
}

type reply struct {
	Ready *bool  `json:"ready,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Prepare starts the worker and waits until the model is loaded.
func (a *Aligner) Prepare(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureStarted(ctx)
}

func (a *Aligner) ensureStarted(ctx context.Context) error {
	if a.broken != nil {
		return a.broken
	}
	if a.proc != nil {
		return nil
	}
	proc, err := a.start(ctx, Command, a.buildArgs()...)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "align", "start worker", "Failed to start stable-ts", err)
	}
	a.proc = proc
	a.replies = bufio.NewReader(proc.Stdout)

	msg, err := a.await(ctx)
	if err != nil {
		a.fail(err)
		return services.Wrap(services.ErrExternalTool, "align", "load model", "stable-ts worker did not become ready", a.withStderr(err))
	}
	if msg.Ready == nil || !*msg.Ready {
		err := errors.New(msg.Error)
		a.fail(err)
		return services.Wrap(services.ErrExternalTool, "align", "load model", "stable-ts could not load "+a.Model(), err)
	}
	return nil
}

// Align forces text onto the narration in audioPath and returns the cues in
// order. Lines of text become cues.
func (a *Aligner) Align(ctx context.Context, audioPath, text, language string) ([]subtitles.Cue, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "align", "input", "chapter text is empty", nil)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureStarted(ctx); err != nil {
		return nil, err
	}

	if a.cfg.WorkDir != "" {
		if err := os.MkdirAll(a.cfg.WorkDir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "align", "ensure work dir", "cannot create work directory", err)
		}
	}
	scratch, err := os.MkdirTemp(a.cfg.WorkDir, "stablets-")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "align", "scratch dir", "cannot create scratch directory", err)
	}
	defer os.RemoveAll(scratch)
	output := filepath.Join(scratch, "aligned.srt")

	lang := langpkg.ToISO2(language)
	if lang == "" {
		lang = langpkg.Fallback
	}
	payload, err := json.Marshal(request{Audio: audioPath, Text: text, Language: lang, Output: output})
	if err != nil {
		return nil, fmt.Errorf("encode align request: %w", err)
	}
	if _, err := a.proc.Stdin.Write(append(payload, '\n')); err != nil {
		a.fail(err)
		return nil, services.Wrap(services.ErrExternalTool, "align", "send job", "stable-ts worker is gone", a.withStderr(err))
	}

	msg, err := a.await(ctx)
	if err != nil {
		a.fail(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "align", "await job", "stable-ts worker stopped", a.withStderr(err))
	}
	if !msg.OK {
		return nil, services.Wrap(services.ErrExternalTool, "align", "align chapter", "stable-ts alignment failed", errors.New(msg.Error))
	}

	cues, err := subtitles.ReadFile(output)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "align", "read output", "stable-ts wrote no subtitles", err)
	}
	return cues, nil
}

// await reads protocol lines until one decodes. Stray output is ignored.
func (a *Aligner) await(ctx context.Context) (reply, error) {
	type result struct {
		msg reply
		err error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := a.replies.ReadString('\n')
			if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "{") {
				var msg reply
				if jsonErr := json.Unmarshal([]byte(trimmed), &msg); jsonErr == nil {
					ch <- result{msg: msg}
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				ch <- result{err: err}
				return
			}
		}
	}()
	select {
	case <-ctx.Done():
		_ = a.proc.Stdin.Close()
		return reply{}, ctx.Err()
	case r := <-ch:
		return r.msg, r.err
	}
}

func (a *Aligner) fail(err error) {
	if a.broken == nil {
		a.broken = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	if a.proc != nil {
		_ = a.proc.Stdin.Close()
	}
}

func (a *Aligner) withStderr(err error) error {
	if tail := strings.TrimSpace(a.stderr.String()); tail != "" {
		return fmt.Errorf("%w: %s", err, tail)
	}
	return err
}

// Close stops the worker and waits for it to exit.
func (a *Aligner) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.proc == nil {
		a.broken = ErrClosed
		return nil
	}
	_ = a.proc.Stdin.Close()
	var err error
	if a.proc.Wait != nil {
		err = a.proc.Wait()
	}
	a.proc = nil
	a.broken = ErrClosed
	return err
}

func (a *Aligner) buildArgs() []string {
	args := make([]string, 0, 16)
	device := CPUDevice
	if a.cfg.CUDAEnabled {
		device = CUDADevice
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	return append(args,
		"--from", Package,
		"python", "-c", workerScript,
		a.Model(),
		device,
	)
}

func (a *Aligner) execStarter(ctx context.Context, name string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	cmd.Stderr = a.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Process{Stdin: stdin, Stdout: stdout, Wait: cmd.Wait}, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
