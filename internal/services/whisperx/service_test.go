package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"booksync/internal/services"
)

func argValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestTranscribeReadsSegments(t *testing.T) {
	svc := NewService(Config{Model: "small", WorkDir: t.TempDir()})
	var captured []string
	var scratch string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		captured = args
		scratch = argValue(args, "--output_dir")
		payload := `{"segments":[{"text":" 吾輩は猫である。 ","start":0,"end":1},{"text":"","start":1,"end":2},{"text":"名前はまだ無い。","start":2,"end":3}]}`
		return os.WriteFile(filepath.Join(scratch, "chapter01.json"), []byte(payload), 0o644)
	})

	text, err := svc.Transcribe(context.Background(), "/audio/chapter01.mp3", "Japanese")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "吾輩は猫である。\n名前はまだ無い。" {
		t.Fatalf("unexpected transcript %q", text)
	}
	if argValue(captured, "--model") != "small" {
		t.Fatalf("model not passed: %v", captured)
	}
	if argValue(captured, "--language") != "ja" {
		t.Fatalf("language not normalized: %v", captured)
	}
	if argValue(captured, "--device") != CPUDevice {
		t.Fatalf("expected cpu device: %v", captured)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err=%v", err)
	}
}

func TestTranscribeWrapsRunnerFailure(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	})
	_, err := svc.Transcribe(context.Background(), "/audio/a.mp3", "ja")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(context.Context, string, ...string) error { return nil })
	_, err := svc.Transcribe(context.Background(), "/audio/a.mp3", "ja")
	if err == nil || !strings.Contains(err.Error(), "no readable transcript") {
		t.Fatalf("expected missing transcript error, got %v", err)
	}
}

func TestBuildArgsCUDAAndPyannote(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_x"})
	args := svc.buildArgs("/a.mp3", "/out", "")
	if argValue(args, "--index-url") != CUDAIndexURL {
		t.Fatalf("expected CUDA index: %v", args)
	}
	if argValue(args, "--hf_token") != "hf_x" || argValue(args, "--device") != CUDADevice {
		t.Fatalf("unexpected args: %v", args)
	}
	if slices.Contains(args, "--language") {
		t.Fatalf("language flag should be omitted: %v", args)
	}
	if argValue(args, "--model") != DefaultModel {
		t.Fatalf("expected default model: %v", args)
	}
}
