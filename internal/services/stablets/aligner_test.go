package stablets

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"booksync/internal/services"
	"booksync/internal/subtitles"
)

// fakeWorker emulates the Python worker over in-memory pipes.
func fakeWorker(ready string, starts *int, handle func(request) reply) Starter {
	return func(_ context.Context, _ string, _ ...string) (*Process, error) {
		*starts++
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer outW.Close()
			fmt.Fprintln(outW, "Loading model...")
			fmt.Fprintln(outW, ready)
			scanner := bufio.NewScanner(inR)
			for scanner.Scan() {
				var req request
				if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
					continue
				}
				data, _ := json.Marshal(handle(req))
				if _, err := outW.Write(append(data, '\n')); err != nil {
					return
				}
			}
		}()
		return &Process{Stdin: inW, Stdout: outR, Wait: func() error {
			<-done
			return nil
		}}, nil
	}
}

func writeCues(req request) reply {
	var cues []subtitles.Cue
	for i, line := range strings.Split(req.Text, "\n") {
		cues = append(cues, subtitles.Cue{
			Index: i + 1,
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i)*time.Second + 800*time.Millisecond,
			Text:  line,
		})
	}
	if err := subtitles.Write(req.Output, cues); err != nil {
		return reply{Error: err.Error()}
	}
	return reply{OK: true}
}

func TestAlignReusesWorker(t *testing.T) {
	starts := 0
	var seen []request
	a := New(Config{WorkDir: t.TempDir()})
	a.WithStarter(fakeWorker(`{"ready": true}`, &starts, func(req request) reply {
		seen = append(seen, req)
		return writeCues(req)
	}))
	defer a.Close()

	ctx := context.Background()
	cues, err := a.Align(ctx, "/audio/one.mp3", "吾輩は猫である。\n名前はまだ無い。", "Japanese")
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if len(cues) != 2 || cues[1].Text != "名前はまだ無い。" || cues[1].Start != time.Second {
		t.Fatalf("unexpected cues: %+v", cues)
	}
	if _, err := a.Align(ctx, "/audio/two.mp3", "二", "ja"); err != nil {
		t.Fatalf("second Align returned error: %v", err)
	}
	if starts != 1 {
		t.Fatalf("expected one worker start, got %d", starts)
	}
	if len(seen) != 2 || seen[0].Language != "ja" || seen[1].Audio != "/audio/two.mp3" {
		t.Fatalf("unexpected requests: %+v", seen)
	}
}

func TestAlignJobFailureKeepsWorker(t *testing.T) {
	starts := 0
	calls := 0
	a := New(Config{WorkDir: t.TempDir()})
	a.WithStarter(fakeWorker(`{"ready": true}`, &starts, func(req request) reply {
		calls++
		if calls == 1 {
			return reply{Error: "audio decode failed"}
		}
		return writeCues(req)
	}))
	defer a.Close()

	_, err := a.Align(context.Background(), "/audio/bad.mp3", "一", "ja")
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "audio decode failed") {
		t.Fatalf("expected wrapped job error, got %v", err)
	}
	if _, err := a.Align(context.Background(), "/audio/good.mp3", "一", "ja"); err != nil {
		t.Fatalf("worker should survive a failed job: %v", err)
	}
	if starts != 1 {
		t.Fatalf("expected one worker start, got %d", starts)
	}
}

func TestPrepareReportsModelFailure(t *testing.T) {
	starts := 0
	a := New(Config{WorkDir: t.TempDir()})
	a.WithStarter(fakeWorker(`{"ready": false, "error": "load model: out of memory"}`, &starts, writeCues))

	err := a.Prepare(context.Background())
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected model load error, got %v", err)
	}
	if _, err := a.Align(context.Background(), "/audio/a.mp3", "一", "ja"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after failed start, got %v", err)
	}
	if starts != 1 {
		t.Fatalf("expected no restart, got %d starts", starts)
	}
}

func TestAlignRejectsEmptyText(t *testing.T) {
	starts := 0
	a := New(Config{})
	a.WithStarter(fakeWorker(`{"ready": true}`, &starts, writeCues))
	_, err := a.Align(context.Background(), "/audio/a.mp3", "  \n", "ja")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if starts != 0 {
		t.Fatal("worker must not start for empty text")
	}
}

func TestAlignAfterClose(t *testing.T) {
	starts := 0
	a := New(Config{WorkDir: t.TempDir()})
	a.WithStarter(fakeWorker(`{"ready": true}`, &starts, writeCues))
	if err := a.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := a.Align(context.Background(), "/audio/a.mp3", "一", "ja"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	args := New(Config{Model: "medium", CUDAEnabled: true}).buildArgs()
	if !slices.Contains(args, CUDAIndexURL) || !slices.Contains(args, Package) {
		t.Fatalf("unexpected args: %v", args)
	}
	if args[len(args)-2] != "medium" || args[len(args)-1] != CUDADevice {
		t.Fatalf("model and device must be the trailing args: %v", args)
	}
}
