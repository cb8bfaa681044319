package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Overridable at build time:
//
//	go build -ldflags "-X main.version=... -X main.commit=... -X main.date=..."
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("framedelta version %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
