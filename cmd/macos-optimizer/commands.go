package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dangerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for cleanable files and print the enhanced report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := svc.ScanCleanableFilesEnhanced()
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Scan report"))
		fmt.Printf("  %d files, %s total\n", report.Base.FilesCount, humanize.IBytes(uint64(report.Base.TotalSize)))
		for _, summary := range report.CategorySummaries {
			label := categoryStyle.Render(summary.Name)
			if summary.Advanced {
				label += dimStyle.Render(" (advanced)")
			}
			fmt.Printf("  %-48s %6d files  %10s  %d auto-selected\n",
				label, summary.FilesCount, humanize.IBytes(uint64(summary.TotalSize)), summary.AutoSelected)
		}
		if len(report.DuplicateGroups) > 0 {
			fmt.Printf("  %s recoverable across %d duplicate groups\n",
				humanize.IBytes(uint64(report.DuplicateSpaceRecoverable)), len(report.DuplicateGroups))
		}
		return nil
	},
}

var (
	allowLowSafety bool
	autoSelected   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean [paths...]",
	Short: "Delete the given paths (Trash-first) or everything auto-selected",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		paths := args
		if autoSelected {
			if _, err := svc.ScanCleanableFilesEnhanced(); err != nil {
				return err
			}
			files, err := svc.GetAutoSelectableFiles()
			if err != nil {
				return err
			}
			for _, f := range files {
				paths = append(paths, f.Path)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("nothing to clean: pass paths or --auto-selected")
		}

		result, err := svc.CleanFilesEnhanced(paths, allowLowSafety)
		if err != nil {
			return err
		}

		fmt.Println(okStyle.Render(fmt.Sprintf("Deleted %d files (%s freed)",
			result.DeletedCount, humanize.IBytes(uint64(result.TotalFreed)))))
		for _, failed := range result.FailedFiles {
			fmt.Println(dangerStyle.Render("  failed: ") + failed.Path + dimStyle.Render("  "+failed.Reason))
		}
		if result.RecoveryPointID != "" {
			fmt.Println(dimStyle.Render("recovery point: " + result.RecoveryPointID))
		}
		return nil
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Trash maintenance",
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Empty the Trash",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		freed, removed, err := svc.EmptyTrash()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d items, freed %s\n", removed, humanize.IBytes(uint64(freed)))
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore [names...]",
	Short: "Restore named items from the Trash",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		restored, err := svc.RestoreFromTrash(args)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d items\n", restored)
		return nil
	},
}

var adminOptimize bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run memory optimization",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		<-svc.Sampler.Ready()

		var result *types.MemoryOptimizationResult
		if adminOptimize {
			result, err = svc.OptimizeMemoryAdmin()
		} else {
			result, err = svc.OptimizeMemory()
		}
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Memory optimization (" + result.OptimizationType + ")"))
		fmt.Printf("  before: %s  after: %s  freed: %s\n",
			humanize.IBytes(result.MemoryBefore),
			humanize.IBytes(result.MemoryAfter),
			okStyle.Render(humanize.IBytes(result.FreedMemory)))
		for _, step := range result.OptimizationsPerformed {
			fmt.Println("  - " + step)
		}
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the current telemetry snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		<-svc.Sampler.Ready()
		snap := svc.GetMetricsSnapshot()

		fmt.Println(titleStyle.Render("Telemetry"))
		if cpu := snap.Cpu.Value; cpu != nil {
			fmt.Printf("  cpu: %.1f%% across %d cores %s\n", cpu.TotalUsage, cpu.CoreCount,
				dimStyle.Render(fmt.Sprintf("(age %dms)", snap.Cpu.AgeMS)))
		} else {
			fmt.Println(dangerStyle.Render("  cpu: " + snap.Cpu.Error))
		}
		if mem := snap.Memory.Value; mem != nil {
			fmt.Printf("  memory: %s / %s used, pressure %.0f%% (%s)\n",
				humanize.IBytes(mem.Used), humanize.IBytes(mem.Total),
				mem.PressurePercent, mem.PressureState)
		} else {
			fmt.Println(dangerStyle.Render("  memory: " + snap.Memory.Error))
		}
		if disks := snap.Disks.Value; disks != nil {
			for _, d := range *disks {
				fmt.Printf("  disk %-24s %s free of %s\n", d.Mount,
					humanize.IBytes(d.FreeSpace), humanize.IBytes(d.TotalSpace))
			}
		}
		if up := snap.Uptime.Value; up != nil {
			fmt.Printf("  uptime: %s\n", (time.Duration(up.UptimeSeconds) * time.Second).String())
		}
		return nil
	},
}

var processesCmd = &cobra.Command{
	Use:   "processes",
	Short: "List processes sorted by memory usage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, _, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		procs, err := svc.GetProcesses()
		if err != nil {
			return err
		}
		limit := 25
		if len(procs) < limit {
			limit = len(procs)
		}
		for _, p := range procs[:limit] {
			fmt.Printf("  %7d  %-40s %8s  %5.1f%%\n",
				p.PID, p.Name, humanize.IBytes(p.MemoryUsage), p.CPUUsage)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&allowLowSafety, "allow-low-safety", false, "allow deleting low-safety candidates")
	cleanCmd.Flags().BoolVar(&autoSelected, "auto-selected", false, "clean everything the scanner auto-selected")
	optimizeCmd.Flags().BoolVar(&adminOptimize, "admin", false, "run the elevated deep clean")
	trashCmd.AddCommand(trashEmptyCmd)
	trashCmd.AddCommand(trashRestoreCmd)
}
