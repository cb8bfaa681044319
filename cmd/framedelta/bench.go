package main

import (
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/framedelta/internal/diff"
	"github.com/cwbudde/framedelta/internal/frame"
)

var (
	benchFrames    int
	benchWidth     int
	benchHeight    int
	benchBlockSize int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the SAD kernel backends",
	Long: `Run the difference kernel over synthetic frame data on every backend
the CPU supports and report throughput in megapixels per second.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVar(&benchFrames, "frames", 100, "Number of synthetic frame pairs to score")
	benchCmd.Flags().IntVar(&benchWidth, "width", 1920, "Synthetic frame width in pixels")
	benchCmd.Flags().IntVar(&benchHeight, "height", 1080, "Synthetic frame height in pixels")
	benchCmd.Flags().IntVar(&benchBlockSize, "block-size", diff.DefaultBlockSize, "Bytes per kernel invocation")
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFrames <= 0 || benchWidth <= 0 || benchHeight <= 0 {
		return fmt.Errorf("frames, width, and height must all be positive")
	}
	if benchBlockSize <= 0 {
		return fmt.Errorf("block size must be positive")
	}

	pixels := benchWidth * benchHeight
	padded := frame.PaddedSize(pixels)

	rng := rand.New(rand.NewSource(1))
	a := make([]byte, padded)
	b := make([]byte, padded)
	rng.Read(a[:pixels])
	rng.Read(b[:pixels])

	fmt.Printf("Scoring %d pairs of %dx%d frames (block size %d)\n\n",
		benchFrames, benchWidth, benchHeight, benchBlockSize)

	backends := diff.AvailableBackends()

	type result struct {
		backend diff.Backend
		elapsed time.Duration
		sum     uint64
	}
	results := make([]result, 0, len(backends))

	for _, bk := range backends {
		start := time.Now()
		var sum uint64
		for i := 0; i < benchFrames; i++ {
			for off := 0; off < padded; off += benchBlockSize {
				end := off + benchBlockSize
				if end > padded {
					end = padded
				}
				s, ok := diff.BlockSumWith(bk, a[off:end], b[off:end])
				if !ok {
					return fmt.Errorf("backend %s unavailable", bk)
				}
				sum += s
			}
		}
		results = append(results, result{backend: bk, elapsed: time.Since(start), sum: sum})
	}

	// All backends must agree on random input.
	for _, r := range results[1:] {
		if r.sum != results[0].sum {
			return fmt.Errorf("backend %s sum %d disagrees with %s sum %d",
				r.backend, r.sum, results[0].backend, results[0].sum)
		}
	}

	var scalarRate float64
	for _, r := range results {
		if r.backend == diff.BackendScalar {
			scalarRate = benchRate(pixels, benchFrames, r.elapsed)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tTIME\tMPIXELS/S\tSPEEDUP")
	fmt.Fprintln(w, "-------\t----\t---------\t-------")
	for _, r := range results {
		rate := benchRate(pixels, benchFrames, r.elapsed)
		speedup := "-"
		if scalarRate > 0 && r.backend != diff.BackendScalar {
			speedup = fmt.Sprintf("%.2fx", rate/scalarRate)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\n", r.backend, r.elapsed.Round(time.Millisecond), rate, speedup)
	}
	w.Flush()

	return nil
}

func benchRate(pixels, pairs int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(pixels) * float64(pairs) / elapsed.Seconds() / 1e6
}
