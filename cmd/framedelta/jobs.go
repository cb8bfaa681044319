package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/framedelta/internal/store"
)

var (
	jobsDataDir   string
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage stored analysis reports",
	Long: `Manage analysis reports persisted by the job server, including listing
stored reports and cleaning old ones.`,
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored reports",
	Long:  `Display all stored reports with input, frame counts, keyframes, and sizes.`,
	RunE:  runListJobs,
}

var cleanJobsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old reports",
	Long: `Delete old reports based on retention policy.
You can keep the most recent N reports or delete reports older than N days.`,
	RunE: runCleanJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(cleanJobsCmd)

	jobsCmd.PersistentFlags().StringVar(&jobsDataDir, "data-dir", "./data", "Base directory for report storage")

	cleanJobsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the most recent N reports (0 = keep all)")
	cleanJobsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete reports older than N days (0 = no age limit)")
	cleanJobsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListJobs(cmd *cobra.Command, args []string) error {
	reportStore, err := store.NewFSStore(jobsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	infos, err := reportStore.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No reports found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tTIMESTAMP\tINPUT\tFRAMES\tKEYFRAMES\tSIZE")
	fmt.Fprintln(w, "------\t---------\t-----\t------\t---------\t----")

	for _, info := range infos {
		jobDir := filepath.Join(jobsDataDir, "jobs", info.JobID)
		size, err := getDirSize(jobDir)
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			shortJobID(info.JobID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			filepath.Base(info.Input),
			info.Frames,
			info.KeyframeCount,
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal reports: %d\n", len(infos))
	return nil
}

func runCleanJobs(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	reportStore, err := store.NewFSStore(jobsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	infos, err := reportStore.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No reports to clean.")
		return nil
	}

	toDelete := selectReportsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No reports match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d report(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s, %s)\n",
			shortJobID(info.JobID),
			filepath.Base(info.Input),
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := reportStore.DeleteReport(info.JobID); err != nil {
			slog.Error("Failed to delete report", "job_id", info.JobID, "error", err)
			failed++
		} else {
			slog.Info("Deleted report", "job_id", info.JobID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d report(s), %d failed.\n", deleted, failed)
	return nil
}

// selectReportsForDeletion applies the retention policy: reports older than
// the age cutoff, plus the oldest reports beyond the keep-last count.
func selectReportsForDeletion(infos []store.ReportInfo, keepLast, olderThanDays int) []store.ReportInfo {
	var toDelete []store.ReportInfo
	chosen := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				chosen[info.JobID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.ReportInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !chosen[info.JobID] {
				toDelete = append(toDelete, info)
				chosen[info.JobID] = true
			}
		}
	}

	return toDelete
}

func shortJobID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
