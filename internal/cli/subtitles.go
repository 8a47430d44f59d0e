package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

var subtitlesCmd = &cobra.Command{
	Use:   "subtitles",
	Short: "Show or export the combined native and learning subtitles",
	Long: `Fetch both tracks for the configured languages and print them merged
by start time. The row relevant at --at is marked with >.

Examples:
  streamfluency subtitles
  streamfluency subtitles --at 42.5
  streamfluency subtitles --export movie.bilingual.srt
  streamfluency subtitles --json`,
	Args: cobra.NoArgs,
	RunE: runSubtitles,
}

func init() {
	rootCmd.AddCommand(subtitlesCmd)

	subtitlesCmd.Flags().
		Float64("at", 0, "Position in seconds used to mark the current row")
	subtitlesCmd.Flags().
		StringP("export", "e", "", "Write a bilingual .srt or .vtt file instead of printing")
	subtitlesCmd.Flags().
		Bool("json", false, "Print the combined rows as JSON")
}

func runSubtitles(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetFloat64("at")
	exportPath, _ := cmd.Flags().GetString("export")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Refresh(ctx)
		tracks := a.Playback.Tracks()
		if len(tracks.Native) == 0 && len(tracks.Learning) == 0 {
			langs := a.Settings.Languages()
			return fmt.Errorf("no subtitles found for %s / %s", langs.Native, langs.Learning)
		}

		if exportPath != "" {
			if err := subtitle.WriteBilingualFile(exportPath, tracks.Native, tracks.Learning); err != nil {
				return fmt.Errorf("failed to export subtitles: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bilingual subtitles written: %s\n", exportPath)
			return nil
		}

		rows := subtitle.BuildCombinedRows(tracks.Native, tracks.Learning, at)
		if asJSON {
			return printJSON(cmd.OutOrStdout(), rows)
		}
		printRows(cmd.OutOrStdout(), rows)
		return nil
	})
}
