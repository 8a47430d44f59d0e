package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export, import and schedule vocabulary backups",
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export vocabulary and settings",
	Long: `Write a backup of the vocabulary and settings.

Without a file argument the backup goes to the configured sink (a local
folder or a MinIO bucket) under the usual streamfluency-DD-MM-YYYY name.

Examples:
  streamfluency backup export
  streamfluency backup export ~/words.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupExport,
}

var backupImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace vocabulary and settings with a backup file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupImport,
}

var backupScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show or change the automatic backup schedule",
	Long: `Show the automatic backup schedule, or change it with flags.

Examples:
  streamfluency backup schedule
  streamfluency backup schedule --enabled --auto-download --frequency weekly --max 4`,
	Args: cobra.NoArgs,
	RunE: runBackupSchedule,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove the oldest automatic backups",
	Args:  cobra.NoArgs,
	RunE:  runBackupPrune,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupScheduleCmd, backupPruneCmd)

	backupScheduleCmd.Flags().
		Bool("enabled", false, "Enable automatic backups")
	backupScheduleCmd.Flags().
		Bool("auto-download", false, "Write automatic backups to the sink")
	backupScheduleCmd.Flags().
		String("frequency", "", "Backup frequency (hourly, daily, weekly)")
	backupScheduleCmd.Flags().
		Int("max", 0, "Number of automatic backups to keep")

	backupPruneCmd.Flags().
		Int("keep", backup.DefaultAutoConfig().MaxBackups, "Number of automatic backups to keep")
}

func runBackupExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			location, err := a.Backup.Save(ctx, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Backup saved: %s\n", location)
			return nil
		}

		path := args[0]
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create backup folder: %w", err)
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := a.Backup.WriteTo(file); err != nil {
			_ = file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Backup written: %s (%d items)\n", path, a.Vocabulary.Len())
		return nil
	})
}

func runBackupImport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		report, err := a.Backup.ImportFile(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "Imported %d items\n", report.Items)
		return nil
	})
}

func runBackupSchedule(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		cfg := a.Backup.AutoConfig(ctx)
		changed := false
		if f.Changed("enabled") {
			cfg.Enabled, _ = f.GetBool("enabled")
			changed = true
		}
		if f.Changed("auto-download") {
			cfg.AutoDownload, _ = f.GetBool("auto-download")
			changed = true
		}
		if f.Changed("frequency") {
			freq, _ := f.GetString("frequency")
			cfg.Frequency = backup.Frequency(freq)
			changed = true
		}
		if f.Changed("max") {
			cfg.MaxBackups, _ = f.GetInt("max")
			changed = true
		}
		if changed {
			if err := a.Backup.SetAutoConfig(ctx, cfg); err != nil {
				return err
			}
		}
		return printJSON(cmd.OutOrStdout(), cfg)
	})
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	keep, _ := cmd.Flags().GetInt("keep")
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		removed, err := a.Backup.Prune(ctx, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backups\n", removed)
		return nil
	})
}
