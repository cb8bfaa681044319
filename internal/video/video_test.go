package video

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTimestampForFrame(t *testing.T) {
	tests := []struct {
		name  string
		index int
		fps   float64
		want  float64
	}{
		{"first frame", 0, 30.0, 0.0},
		{"one second", 30, 30.0, 1.0},
		{"mid second", 45, 30.0, 1.5},
		{"ntsc rate", 30000, 30000.0 / 1001.0, 1001.0},
		{"low rate", 5, 2.5, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimestampForFrame(tt.index, tt.fps)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TimestampForFrame(%d, %v) = %v, want %v", tt.index, tt.fps, got, tt.want)
			}
		})
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"30000/1001", 30000.0 / 1001.0, false},
		{"25", 25.0, false},
		{"24/1", 24.0, false},
		{" 60/2 ", 30.0, false},
		{"0/0", 0, true},
		{"30/0", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"1/abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseRational(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseRational(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRational(%q) failed: %v", tt.input, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("parseRational(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsMP4(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"clip.mp4", true},
		{"CLIP.MP4", true},
		{"clip.m4v", true},
		{"clip.mov", true},
		{"/tmp/nested/clip.mp4", true},
		{"clip.mkv", false},
		{"clip.avi", false},
		{"clip", false},
		{"clip.mp4.raw", false},
	}

	for _, tt := range tests {
		if got := isMP4(tt.input); got != tt.want {
			t.Errorf("isMP4(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDecodeArgs(t *testing.T) {
	args := decodeArgs("in.mp4")
	want := []string{"-i", "in.mp4", "-f", "rawvideo", "-pix_fmt", "gray", "-an", "-"}

	if len(args) != len(want) {
		t.Fatalf("decodeArgs returned %d args, want %d: %v", len(args), len(want), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestProbeArgs(t *testing.T) {
	args := probeArgs("in.webm")

	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-select_streams v:0",
		"-print_format json",
		"avg_frame_rate",
		"in.webm",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("probe args missing %q: %v", fragment, args)
		}
	}
	if args[len(args)-1] != "in.webm" {
		t.Errorf("input must be the final argument, got %v", args)
	}
}

func TestExporterArgs(t *testing.T) {
	e := &Exporter{
		FFmpegPath: "ffmpeg",
		Input:      "in.mp4",
		OutDir:     "/tmp/out",
		FPS:        30.0,
		Quality:    2,
	}

	out := e.outPath(45)
	if want := filepath.Join("/tmp/out", "keyframe_45.jpg"); out != want {
		t.Errorf("outPath(45) = %q, want %q", out, want)
	}

	args := e.exportArgs(45, out)
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-ss 1.5",
		"-i in.mp4",
		"-vframes 1",
		"-q:v 2",
		"-y",
		out,
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("export args missing %q: %v", fragment, args)
		}
	}
}

func TestExport_InvalidRate(t *testing.T) {
	e := &Exporter{FFmpegPath: "ffmpeg", Input: "in.mp4", OutDir: t.TempDir(), Quality: 2}

	if _, err := e.Export(context.Background(), []int{1}, 0); err == nil {
		t.Error("expected error for zero frame rate")
	}
}

func TestExport_NoIndices(t *testing.T) {
	e := &Exporter{FFmpegPath: "ffmpeg", Input: "in.mp4", OutDir: t.TempDir(), FPS: 30, Quality: 2}

	paths, err := e.Export(context.Background(), nil, 50)
	if err != nil {
		t.Fatalf("Export with no indices failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no exported paths, got %v", paths)
	}
}

func TestProbeMP4_Errors(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		if _, err := probeMP4(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("not a container", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.mp4")
		if err := os.WriteFile(path, []byte("this is not an mp4 file at all"), 0o644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}
		if _, err := probeMP4(path); err == nil {
			t.Error("expected error for malformed container")
		}
	})
}

func TestStderrTail(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		max  int
		want string
	}{
		{"short buffer", "error line", 512, "error line"},
		{"exact length", "abcd", 4, "abcd"},
		{"truncated", "0123456789", 4, "6789"},
		{"empty", "", 16, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stderrTail([]byte(tt.buf), tt.max); got != tt.want {
				t.Errorf("stderrTail(%q, %d) = %q, want %q", tt.buf, tt.max, got, tt.want)
			}
		})
	}
}
