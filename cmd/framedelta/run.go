package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/framedelta/internal/analyze"
	"github.com/cwbudde/framedelta/internal/config"
	"github.com/cwbudde/framedelta/internal/plot"
	"github.com/cwbudde/framedelta/internal/store"
	"github.com/cwbudde/framedelta/internal/video"
)

var (
	runWidth     int
	runHeight    int
	runFPS       float64
	runRaw       bool
	runThreshold float64
	runBlockSize int
	runParallel  int
	runNoSIMD    bool
	runMaxFrames int
	runWindow    int
	runSave      bool
	runMaxSave   int
	runOutDir    string
	runReport    string
	runPlot      string
	runTrace     string
	runConfig    string
)

var runCmd = &cobra.Command{
	Use:   "run <video>",
	Short: "Detect keyframes in a video or raw grayscale stream",
	Long: `Runs the full pipeline: probe geometry, decode to raw grayscale frames,
score adjacent frame pairs, select keyframes above the threshold, and
optionally export stills, a JSON report, a score trace, and a timeline plot.

With --raw, the input is an already-decoded stream of concatenated
width*height byte frames; --width and --height are then required.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalysis,
}

func init() {
	defaults := config.Default().Analysis

	runCmd.Flags().IntVar(&runWidth, "width", defaults.Width, "Frame width (0 = probe from input)")
	runCmd.Flags().IntVar(&runHeight, "height", defaults.Height, "Frame height (0 = probe from input)")
	runCmd.Flags().Float64Var(&runFPS, "fps", defaults.FPS, "Frame rate for timestamp mapping (0 = probe from input)")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "Input is a raw grayscale byte stream")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", defaults.Threshold, "Keyframe selection threshold (mean per-pixel difference)")
	runCmd.Flags().IntVar(&runBlockSize, "block-size", defaults.BlockSize, "Block decomposition size in pixels")
	runCmd.Flags().IntVar(&runParallel, "parallel", defaults.Parallel, "Worker pool size (0 = number of CPUs)")
	runCmd.Flags().BoolVar(&runNoSIMD, "no-simd", false, "Force the scalar kernel path")
	runCmd.Flags().IntVar(&runMaxFrames, "max-frames", defaults.MaxFrames, "Maximum frames to ingest (0 = unbounded)")
	runCmd.Flags().IntVar(&runWindow, "window", defaults.Window, "Process frames in windows of this size (0 = whole stream in memory)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Export a still image per keyframe")
	runCmd.Flags().IntVar(&runMaxSave, "max-save", defaults.MaxSave, "Maximum stills to export")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", defaults.OutDir, "Directory for exported stills")
	runCmd.Flags().StringVar(&runReport, "report", "", "Write the full JSON report to this path")
	runCmd.Flags().StringVar(&runPlot, "plot", "", "Write a score timeline PNG to this path")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a per-pair score JSONL trace to this path")
	runCmd.Flags().StringVar(&runConfig, "config", "", "YAML config file (flags take precedence)")

	rootCmd.AddCommand(runCmd)
}

// applyRunConfig overlays config-file values under any flag the user did
// not set explicitly.
func applyRunConfig(cmd *cobra.Command) error {
	if runConfig == "" {
		return nil
	}
	cfg, err := config.Load(runConfig)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("width") {
		runWidth = cfg.Analysis.Width
	}
	if !flags.Changed("height") {
		runHeight = cfg.Analysis.Height
	}
	if !flags.Changed("fps") {
		runFPS = cfg.Analysis.FPS
	}
	if !flags.Changed("threshold") {
		runThreshold = cfg.Analysis.Threshold
	}
	if !flags.Changed("block-size") {
		runBlockSize = cfg.Analysis.BlockSize
	}
	if !flags.Changed("parallel") {
		runParallel = cfg.Analysis.Parallel
	}
	if !flags.Changed("no-simd") {
		runNoSIMD = !cfg.Analysis.Vectorize
	}
	if !flags.Changed("max-frames") {
		runMaxFrames = cfg.Analysis.MaxFrames
	}
	if !flags.Changed("window") {
		runWindow = cfg.Analysis.Window
	}
	if !flags.Changed("max-save") {
		runMaxSave = cfg.Analysis.MaxSave
	}
	if !flags.Changed("out-dir") {
		runOutDir = cfg.Analysis.OutDir
	}
	return nil
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	if err := applyRunConfig(cmd); err != nil {
		return err
	}

	printer := newProgressPrinter(os.Stderr)
	analyzer, err := analyze.New(analyze.Options{
		Input:      args[0],
		Raw:        runRaw,
		Width:      runWidth,
		Height:     runHeight,
		FPS:        runFPS,
		Threshold:  runThreshold,
		BlockSize:  runBlockSize,
		ScalarOnly: runNoSIMD,
		Parallel:   runParallel,
		MaxFrames:  runMaxFrames,
		Window:     runWindow,
		Save:       runSave,
		MaxSave:    runMaxSave,
		OutDir:     runOutDir,
		Progress:   printer.update,
	})
	if err != nil {
		return err
	}

	report, err := analyzer.Run(cmd.Context())
	printer.done()
	if err != nil {
		return err
	}

	printSummary(report)

	if runReport != "" {
		if err := writeReportFile(runReport, report); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", runReport)
	}
	if runTrace != "" {
		if err := writeTraceFile(runTrace, report); err != nil {
			return err
		}
		fmt.Printf("Trace written to %s\n", runTrace)
	}
	if runPlot != "" {
		opts := plot.DefaultOptions()
		opts.Thumbnails = plot.LoadThumbnails(report.SavedPaths, 8)
		if err := plot.WriteTimeline(runPlot, report.Scores, report.Keyframes, report.Config.Threshold, opts); err != nil {
			return err
		}
		fmt.Printf("Plot written to %s\n", runPlot)
	}

	return nil
}

func printSummary(report *store.Report) {
	s := report.Stats
	fmt.Printf("Analyzed %d frames (%d pairs) in %.2fs: %d keyframes, %.1f Mpixels/sec on %s with %d workers\n",
		s.Frames, s.Pairs, s.TotalSeconds, s.KeyframeCount, s.MPixelsPerSec, s.Backend, s.Workers)

	if len(report.Keyframes) == 0 {
		return
	}
	fmt.Print("Keyframes:")
	for _, kf := range report.Keyframes {
		fmt.Printf(" %d (%.2fs)", kf, video.TimestampForFrame(kf, report.Config.FPS))
	}
	fmt.Println()
}

func writeReportFile(path string, report *store.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeTraceFile(path string, report *store.Report) error {
	tw, err := store.NewTraceWriterAt(path)
	if err != nil {
		return err
	}
	defer tw.Close()

	keyframes := make(map[int]bool, len(report.Keyframes))
	for _, kf := range report.Keyframes {
		keyframes[kf] = true
	}
	for pair, score := range report.Scores {
		entry := store.TraceEntry{
			Pair:      pair,
			Score:     score,
			Keyframe:  keyframes[pair+1],
			Timestamp: report.Timestamp,
		}
		if err := tw.Write(entry); err != nil {
			return err
		}
	}
	return nil
}
