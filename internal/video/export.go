package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Exporter writes selected frames back out as JPEG stills, one ffmpeg
// invocation per frame, seeking by timestamp.
type Exporter struct {
	FFmpegPath string
	Input      string
	OutDir     string
	FPS        float64
	Quality    int
}

// TimestampForFrame converts a frame index to seconds at the given rate.
func TimestampForFrame(index int, fps float64) float64 {
	return float64(index) / fps
}

// exportArgs builds the still-extraction invocation for one frame.
func (e *Exporter) exportArgs(index int, outPath string) []string {
	return []string{
		"-ss", strconv.FormatFloat(TimestampForFrame(index, e.FPS), 'f', -1, 64),
		"-i", e.Input,
		"-vframes", "1",
		"-q:v", strconv.Itoa(e.Quality),
		"-y",
		outPath,
	}
}

func (e *Exporter) outPath(index int) string {
	return filepath.Join(e.OutDir, fmt.Sprintf("keyframe_%d.jpg", index))
}

// Export saves up to maxSave stills for the given frame indices and returns
// the paths written. maxSave <= 0 saves everything.
func (e *Exporter) Export(ctx context.Context, indices []int, maxSave int) ([]string, error) {
	if e.FPS <= 0 {
		return nil, fmt.Errorf("invalid export rate %v", e.FPS)
	}
	if len(indices) == 0 {
		return nil, nil
	}
	if maxSave > 0 && len(indices) > maxSave {
		indices = indices[:maxSave]
	}
	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(indices))
	for _, idx := range indices {
		out := e.outPath(idx)
		cmd := exec.CommandContext(ctx, e.FFmpegPath, e.exportArgs(idx, out)...)
		if raw, err := cmd.CombinedOutput(); err != nil {
			return paths, fmt.Errorf("failed to export frame %d: %w: %s", idx, err, stderrTail(raw, 512))
		}
		slog.Debug("Keyframe exported", "index", idx, "path", out)
		paths = append(paths, out)
	}
	return paths, nil
}
