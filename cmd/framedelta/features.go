package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/framedelta/internal/cpufeat"
	"github.com/cwbudde/framedelta/internal/diff"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Show detected CPU features and SAD kernel backends",
	Long: `Display which SIMD extensions the running CPU supports and which
difference-kernel backend will be used by default.`,
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	feats := cpufeat.Detect()

	fmt.Printf("Platform: %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tAVAILABLE")
	fmt.Fprintln(w, "-------\t---------")
	fmt.Fprintf(w, "AVX2\t%s\n", yesNo(feats.AVX2))
	fmt.Fprintf(w, "SSE2\t%s\n", yesNo(feats.SSE2))
	w.Flush()

	fmt.Println()
	fmt.Println("Kernel backends (most capable first):")
	for _, bk := range diff.AvailableBackends() {
		marker := " "
		if bk == diff.ActiveBackend {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, bk)
	}
	fmt.Println()
	fmt.Printf("Active backend: %s\n", diff.ActiveBackend)

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
