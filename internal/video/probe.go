package video

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult describes the first video stream of an input file.
type ProbeResult struct {
	Width      int
	Height     int
	FPS        float64
	Duration   float64
	FrameCount int
}

// Probe inspects the input and returns its geometry and frame rate. MP4
// family containers are parsed directly; everything else goes through
// ffprobe.
func Probe(ctx context.Context, input string) (ProbeResult, error) {
	if isMP4(input) {
		res, err := probeMP4(input)
		if err == nil {
			return res, nil
		}
		slog.Debug("Container probe failed, falling back to ffprobe", "input", input, "error", err)
	}
	return probeFFprobe(ctx, input)
}

type ffprobeStream struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

func probeArgs(input string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,nb_frames,duration",
		"-print_format", "json",
		input,
	}
}

func probeFFprobe(ctx context.Context, input string) (ProbeResult, error) {
	ffprobePath, err := FindFFprobe()
	if err != nil {
		return ProbeResult{}, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath, probeArgs(input)...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return ProbeResult{}, fmt.Errorf("ffprobe failed: %s", stderrTail(exitErr.Stderr, 512))
		}
		return ProbeResult{}, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return ProbeResult{}, fmt.Errorf("no video stream found in %s", input)
	}

	s := parsed.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return ProbeResult{}, fmt.Errorf("invalid stream geometry %dx%d in %s", s.Width, s.Height, input)
	}

	res := ProbeResult{Width: s.Width, Height: s.Height}
	if fps, err := parseRational(s.AvgFrameRate); err == nil {
		res.FPS = fps
	}
	if n, err := strconv.Atoi(s.NBFrames); err == nil {
		res.FrameCount = n
	}
	if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
		res.Duration = d
	}
	return res, nil
}

// parseRational evaluates ffprobe rate strings such as "30000/1001" or "25".
func parseRational(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty rational")
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid rational %q: zero denominator", s)
	}
	return n / d, nil
}
