package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/captions"
	"github.com/vitorvargasdev/streamfluency/internal/ffmpeg"
)

var extractCmd = &cobra.Command{
	Use:   "extract [media_file]",
	Short: "Extract an embedded subtitle stream from a media file",
	Long: `List or extract the subtitle streams embedded in a video file.

The chosen stream is converted to SRT with ffmpeg. Without --stream the
first stream whose language tag matches --language is used.

Examples:
  streamfluency extract movie.mkv --list
  streamfluency extract movie.mkv -l en
  streamfluency extract movie.mkv --stream 3 -o movie.pt-BR.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().
		Bool("list", false, "List subtitle streams instead of extracting")
	extractCmd.Flags().
		StringP("language", "l", "", "Language tag of the stream to extract (e.g., en, pt-BR)")
	extractCmd.Flags().
		IntP("stream", "s", -1, "Absolute stream index to extract")
	extractCmd.Flags().
		StringP("output", "o", "", "Output file path")
}

func runExtract(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()

	list, _ := cmd.Flags().GetBool("list")
	language, _ := cmd.Flags().GetString("language")
	streamIndex, _ := cmd.Flags().GetInt("stream")
	outputPath, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths, err := ffmpeg.Resolve(ffmpeg.BinaryPaths{
		FFmpeg:  cfg.Captions.FFmpegPath,
		FFprobe: cfg.Captions.FFprobePath,
	})
	if err != nil {
		return fmt.Errorf("failed to locate ffmpeg: %w", err)
	}

	streams, err := ffmpeg.ProbeSubtitleStreams(ctx, paths, mediaPath)
	if err != nil {
		return err
	}
	if list {
		printStreams(streams)
		return nil
	}
	if len(streams) == 0 {
		return fmt.Errorf("no subtitle streams in %s", mediaPath)
	}

	stream, ok := chooseStream(streams, streamIndex, language)
	if !ok {
		return fmt.Errorf("no subtitle stream matches (stream %d, language %q)", streamIndex, language)
	}

	if outputPath == "" {
		outputPath = extractedPath(mediaPath, stream)
	}

	logger.Infow("Extracting subtitles",
		"media", mediaPath,
		"stream", stream.Index,
		"language", stream.Language,
		"output", outputPath,
	)
	if err := ffmpeg.ExtractSubtitleStream(paths, mediaPath, stream.Index, outputPath); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles extracted successfully: %s\n", absOutput)

	return nil
}

func printStreams(streams []ffmpeg.SubtitleStream) {
	if len(streams) == 0 {
		fmt.Println("No subtitle streams found")
		return
	}
	for _, s := range streams {
		lang := s.Language
		if lang == "" {
			lang = "und"
		}
		fmt.Printf("%3d  %-6s %-10s %s\n", s.Index, lang, s.Codec, s.Title)
	}
}

// explicit index wins, then language, then the first stream
func chooseStream(streams []ffmpeg.SubtitleStream, index int, language string) (ffmpeg.SubtitleStream, bool) {
	if index >= 0 {
		for _, s := range streams {
			if s.Index == index {
				return s, true
			}
		}
		return ffmpeg.SubtitleStream{}, false
	}
	if language != "" {
		for _, s := range streams {
			if captions.MatchLanguage(s.Language, language) {
				return s, true
			}
		}
		return ffmpeg.SubtitleStream{}, false
	}
	if len(streams) == 0 {
		return ffmpeg.SubtitleStream{}, false
	}
	return streams[0], true
}

func extractedPath(mediaPath string, stream ffmpeg.SubtitleStream) string {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	if stream.Language != "" {
		return fmt.Sprintf("%s.%s.srt", base, stream.Language)
	}
	return fmt.Sprintf("%s.%d.srt", base, stream.Index)
}
