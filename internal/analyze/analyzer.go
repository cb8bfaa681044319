// Package analyze orchestrates the full keyframe detection pipeline:
// probe, decode, frame ingestion, pairwise difference scoring, keyframe
// selection, and optional still export. It is the one reusable engine both
// the CLI and the job server run.
package analyze

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/framedelta/internal/diff"
	"github.com/cwbudde/framedelta/internal/frame"
	"github.com/cwbudde/framedelta/internal/pool"
	"github.com/cwbudde/framedelta/internal/store"
	"github.com/cwbudde/framedelta/internal/video"
)

// DefaultFPS is the frame rate assumed when neither the caller nor the
// prober supplies one. Applied only here, at the configuration boundary;
// everything downstream takes fps as an explicit parameter.
const DefaultFPS = 30.0

// DefaultMaxSave caps how many keyframe stills one run exports.
const DefaultMaxSave = 50

// Progress is a pipeline progress snapshot delivered to the Options
// callback as the run advances.
type Progress struct {
	FramesRead  int
	PairsScored int
	Keyframes   int
}

// Options configure one analysis run. Zero values select the documented
// defaults where one exists.
type Options struct {
	// Input is the video path, or the raw byte stream path when Raw is
	// set. Runs driven through RunStream may leave it empty.
	Input string

	// Raw marks Input as an already-decoded grayscale byte stream.
	// Width and Height are then required since nothing can be probed.
	Raw bool

	// Width and Height override probed geometry when positive.
	Width  int
	Height int

	// FPS overrides the probed frame rate when positive. Used only to
	// map keyframe indices to export timestamps.
	FPS float64

	// Threshold is the keyframe selection threshold.
	// Zero means diff.DefaultThreshold.
	Threshold float64

	// BlockSize is the engine block decomposition size in pixels.
	// Zero means diff.DefaultBlockSize.
	BlockSize int

	// ScalarOnly forces the scalar kernel tier.
	ScalarOnly bool

	// Parallel is the worker pool size; 0 selects the CPU count.
	Parallel int

	// MaxFrames caps ingestion; 0 is unbounded.
	MaxFrames int

	// Window processes frames in overlapping windows of this many frames
	// instead of materializing the whole sequence. 0 holds everything in
	// memory. Scores are identical either way; only peak memory differs.
	Window int

	// Save exports a still per selected keyframe, up to MaxSave
	// (0 meaning DefaultMaxSave), into OutDir.
	Save    bool
	MaxSave int
	OutDir  string

	// Progress, when non-nil, receives snapshots as frames are read and
	// pairs are scored. Called from the run's goroutine.
	Progress func(Progress)
}

// Analyzer runs the pipeline with a fixed set of options.
type Analyzer struct {
	opts Options
}

// New validates opts and returns an analyzer.
func New(opts Options) (*Analyzer, error) {
	if opts.Threshold < 0 {
		return nil, &frame.ConfigError{Field: "threshold", Reason: "cannot be negative"}
	}
	if opts.Threshold == 0 {
		opts.Threshold = diff.DefaultThreshold
	}
	if opts.BlockSize < 0 {
		return nil, &frame.ConfigError{Field: "blockSize", Reason: "cannot be negative"}
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = diff.DefaultBlockSize
	}
	if opts.Window < 0 {
		return nil, &frame.ConfigError{Field: "window", Reason: "cannot be negative"}
	}
	if opts.Window == 1 {
		return nil, &frame.ConfigError{Field: "window", Reason: "must hold at least two frames"}
	}
	if opts.MaxSave == 0 {
		opts.MaxSave = DefaultMaxSave
	}
	if opts.Raw && (opts.Width <= 0 || opts.Height <= 0) {
		return nil, &frame.ConfigError{Field: "geometry", Reason: "required for raw input"}
	}
	return &Analyzer{opts: opts}, nil
}

// Run executes the whole pipeline against opts.Input: probing geometry and
// frame rate unless overridden, decoding through ffmpeg (or reading the raw
// file directly), scoring, selecting, and exporting stills when requested.
func (a *Analyzer) Run(ctx context.Context) (*store.Report, error) {
	if a.opts.Input == "" {
		return nil, &frame.ConfigError{Field: "input", Reason: "is required"}
	}
	start := time.Now()

	width, height, fps := a.opts.Width, a.opts.Height, a.opts.FPS
	if !a.opts.Raw && (width <= 0 || height <= 0 || fps <= 0) {
		probed, err := video.Probe(ctx, a.opts.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to probe input: %w", err)
		}
		if width <= 0 {
			width = probed.Width
		}
		if height <= 0 {
			height = probed.Height
		}
		if fps <= 0 {
			fps = probed.FPS
		}
		slog.Debug("Input probed", "width", probed.Width, "height", probed.Height, "fps", probed.FPS)
	}
	if fps <= 0 {
		fps = DefaultFPS
	}

	var src io.Reader
	var closeSrc func() error
	if a.opts.Raw {
		f, err := os.Open(a.opts.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to open raw input: %w", err)
		}
		src, closeSrc = f, f.Close
	} else {
		dec, err := video.StartDecoder(ctx, a.opts.Input)
		if err != nil {
			return nil, err
		}
		src = dec
		closeSrc = func() error { return dec.Close() }
	}

	report, runErr := a.runStream(ctx, src, width, height, fps)

	if err := closeSrc(); err != nil {
		if runErr == nil && a.opts.MaxFrames == 0 {
			return nil, err
		}
		// The stream was abandoned early or already failed; the child's
		// exit status carries no extra information.
		slog.Debug("Byte source close after early stop", "error", err)
	}
	if runErr != nil {
		return nil, runErr
	}

	if a.opts.Save && len(report.Keyframes) > 0 && !a.opts.Raw {
		ffmpegPath, err := video.FindFFmpeg()
		if err != nil {
			return nil, err
		}
		exporter := &video.Exporter{
			FFmpegPath: ffmpegPath,
			Input:      a.opts.Input,
			OutDir:     a.opts.OutDir,
			FPS:        fps,
			Quality:    2,
		}
		paths, err := exporter.Export(ctx, report.Keyframes, a.opts.MaxSave)
		if err != nil {
			return nil, fmt.Errorf("failed to export keyframes: %w", err)
		}
		report.SavedPaths = paths
		slog.Info("Keyframes exported", "count", len(paths), "outDir", a.opts.OutDir)
	}

	report.Stats.TotalSeconds = time.Since(start).Seconds()
	return report, nil
}

// RunStream executes the pipeline over a caller-supplied byte source with
// explicit geometry, skipping probing, decoding, and export. The frame rate
// recorded in the report comes from the options (default DefaultFPS).
func (a *Analyzer) RunStream(ctx context.Context, src io.Reader, width, height int) (*store.Report, error) {
	fps := a.opts.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return a.runStream(ctx, src, width, height, fps)
}

func (a *Analyzer) runStream(ctx context.Context, src io.Reader, width, height int, fps float64) (*store.Report, error) {
	start := time.Now()

	reader, err := frame.NewReader(src, width, height, a.opts.MaxFrames)
	if err != nil {
		return nil, err
	}

	workers := pool.New(a.opts.Parallel)
	defer workers.Close()

	engine, err := diff.NewEngine(workers, diff.Options{
		BlockSize: a.opts.BlockSize,
		Vectorize: !a.opts.ScalarOnly,
	})
	if err != nil {
		return nil, err
	}

	var scores []float64
	var framesRead int
	var readTime, scoreTime time.Duration

	if a.opts.Window > 0 {
		scores, framesRead, readTime, scoreTime, err = a.scoreWindowed(ctx, reader, engine)
	} else {
		scores, framesRead, readTime, scoreTime, err = a.scoreWhole(ctx, reader, engine)
	}
	if err != nil {
		return nil, err
	}

	keyframes := diff.SelectKeyframes(scores, a.opts.Threshold)
	a.report(Progress{FramesRead: framesRead, PairsScored: len(scores), Keyframes: len(keyframes)})

	total := time.Since(start)
	stats := store.Stats{
		Frames:        framesRead,
		Pairs:         len(scores),
		KeyframeCount: len(keyframes),
		ReadSeconds:   readTime.Seconds(),
		ScoreSeconds:  scoreTime.Seconds(),
		TotalSeconds:  total.Seconds(),
		Backend:       backendName(a.opts.ScalarOnly),
		Workers:       workers.Size(),
	}
	if len(scores) > 0 {
		stats.KeyframeRatio = float64(len(keyframes)) / float64(len(scores))
	}
	if scoreTime > 0 {
		pixels := float64(len(scores)) * float64(width) * float64(height)
		stats.MPixelsPerSec = pixels / scoreTime.Seconds() / 1e6
	}

	slog.Info("Analysis complete",
		"frames", framesRead,
		"pairs", len(scores),
		"keyframes", len(keyframes),
		"backend", stats.Backend,
		"elapsed", total,
	)

	config := store.AnalysisConfig{
		Input:     a.opts.Input,
		Raw:       a.opts.Raw,
		Width:     width,
		Height:    height,
		FPS:       fps,
		Threshold: a.opts.Threshold,
		BlockSize: a.opts.BlockSize,
		Vectorize: !a.opts.ScalarOnly,
		Parallel:  workers.Size(),
		MaxFrames: a.opts.MaxFrames,
		Window:    a.opts.Window,
		Save:      a.opts.Save,
		MaxSave:   a.opts.MaxSave,
		OutDir:    a.opts.OutDir,
	}
	return store.NewReport("", config, scores, keyframes, stats), nil
}

// scoreWhole materializes the full frame sequence, then scores it in one
// engine pass so every pair and block is available as parallel work.
func (a *Analyzer) scoreWhole(ctx context.Context, reader *frame.Reader, engine *diff.Engine) ([]float64, int, time.Duration, time.Duration, error) {
	readStart := time.Now()
	var frames []frame.Frame
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, 0, err
		}
		f, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, 0, err
		}
		frames = append(frames, f)
		a.report(Progress{FramesRead: len(frames)})
	}
	readTime := time.Since(readStart)

	scoreStart := time.Now()
	scores := engine.ScoreFrames(frames)
	scoreTime := time.Since(scoreStart)
	a.report(Progress{FramesRead: len(frames), PairsScored: len(scores)})

	return scores, len(frames), readTime, scoreTime, nil
}

// scoreWindowed keeps at most Window frames in memory. Each filled window
// is scored and all frames but the last are dropped; the carried frame
// overlaps into the next window, so the concatenated scores are identical
// to a whole-sequence pass.
func (a *Analyzer) scoreWindowed(ctx context.Context, reader *frame.Reader, engine *diff.Engine) ([]float64, int, time.Duration, time.Duration, error) {
	var (
		window     []frame.Frame
		scores     []float64
		framesRead int
		readTime   time.Duration
		scoreTime  time.Duration
	)

	flush := func() {
		if len(window) < 2 {
			return
		}
		scoreStart := time.Now()
		scores = append(scores, engine.ScoreFrames(window)...)
		scoreTime += time.Since(scoreStart)
		window = append(window[:0], window[len(window)-1])
		a.report(Progress{FramesRead: framesRead, PairsScored: len(scores)})
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, 0, err
		}
		readStart := time.Now()
		f, err := reader.Next()
		readTime += time.Since(readStart)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, 0, err
		}
		framesRead++
		window = append(window, f)
		a.report(Progress{FramesRead: framesRead, PairsScored: len(scores)})
		if len(window) == a.opts.Window {
			flush()
		}
	}
	flush()

	return scores, framesRead, readTime, scoreTime, nil
}

func (a *Analyzer) report(p Progress) {
	if a.opts.Progress != nil {
		a.opts.Progress(p)
	}
}

func backendName(scalarOnly bool) string {
	if scalarOnly {
		return diff.BackendScalar.String()
	}
	return diff.ActiveBackend.String()
}
