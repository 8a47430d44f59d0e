package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
	"github.com/vitorvargasdev/streamfluency/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitle_file]",
	Short: "Translate a subtitle file to another language using AI",
	Long: `Translate an existing subtitle file to another language using an LLM.

Supports SRT and VTT input. Cue timings are kept, only the text changes.

The --overlay flag writes bilingual subtitles with the original line
first, followed by the translated line.

Examples:
  streamfluency translate movie.en.srt --target-language pt-BR
  streamfluency translate movie.en.vtt -t es --overlay
  streamfluency translate movie.srt -l english -t japanese --provider anthropic -o movie.ja.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		StringP("language", "l", "", "Language of the input subtitles")
	translateCmd.Flags().
		StringP("output", "o", "", "Output file path")
	translateCmd.Flags().
		Bool("overlay", false, "Write original and translated text together (bilingual subtitles)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (defaults to the configured key for the provider)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider-specific, uses sensible defaults)")
	translateCmd.Flags().
		String("provider", "", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		Int("concurrency", 0, "Number of parallel translation workers")
	translateCmd.Flags().
		Int("batch-size", 0, "Number of subtitle entries per API request")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	subtitlePath := args[0]
	ctx := cmd.Context()

	targetLang, _ := cmd.Flags().GetString("target-language")
	inputLang, _ := cmd.Flags().GetString("language")
	outputPath, _ := cmd.Flags().GetString("output")
	overlay, _ := cmd.Flags().GetBool("overlay")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	providerStr, _ := cmd.Flags().GetString("provider")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	if _, err := os.Stat(subtitlePath); os.IsNotExist(err) {
		return fmt.Errorf("subtitle file not found: %s", subtitlePath)
	}

	format, ok := subtitle.FormatFromExtension(subtitlePath)
	if !ok || (format != subtitle.FormatSRT && format != subtitle.FormatVTT) {
		return fmt.Errorf(
			"unsupported subtitle format %q: use .srt or .vtt",
			filepath.Ext(subtitlePath),
		)
	}

	if strings.TrimSpace(targetLang) == "" {
		return fmt.Errorf("target language is required")
	}
	if inputLang != "" &&
		strings.EqualFold(strings.TrimSpace(inputLang), strings.TrimSpace(targetLang)) {
		return fmt.Errorf(
			"input language %q and target language %q cannot be the same",
			inputLang,
			targetLang,
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if providerStr == "" {
		providerStr = cfg.Translation.Provider
	}
	if model == "" {
		model = cfg.Translation.Model
	}
	if concurrency == 0 {
		concurrency = cfg.Translation.Concurrency
	}
	if batchSize == 0 {
		batchSize = cfg.Translation.BatchSize
	}
	if apiKey == "" {
		apiKey = cfg.Translation.APIKey(providerStr)
	}
	if apiKey == "" {
		return fmt.Errorf(
			"API key is required: use --api-key flag or set %s environment variable",
			apiKeyEnv(providerStr),
		)
	}
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	if outputPath == "" {
		outputPath = translatedPath(subtitlePath, targetLang, overlay)
	}

	logger.Infow("Starting subtitle translation",
		"input", subtitlePath,
		"output", outputPath,
		"target_language", targetLang,
		"input_language", inputLang,
		"overlay", overlay,
		"provider", providerStr,
		"model", model,
	)

	track, err := subtitle.Open(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	if len(track) == 0 {
		return fmt.Errorf("subtitle file contains no entries")
	}
	logger.Infow("Parsed subtitle file", "entries", len(track), "format", format)

	translator, err := translate.Factory(ctx, translate.Provider(providerStr), apiKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: targetLang,
		Model:          model,
		BatchSize:      batchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	logger.Infow("Translating subtitles", "items", len(track), "concurrency", concurrency)
	translated, err := translate.TranslateTrack(ctx, translator, track, concurrency)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	logger.Infow("Translation complete", "results", len(translated))

	if overlay {
		// original is the learning line, translation the native one
		err = subtitle.WriteBilingualFile(outputPath, translated, track)
	} else {
		err = writeTrackFile(outputPath, translated)
	}
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles translated successfully: %s\n", absOutput)
	fmt.Printf("  Entries: %d\n", len(translated))
	fmt.Printf("  Target language: %s\n", targetLang)
	if overlay {
		fmt.Printf("  Mode: bilingual overlay\n")
	}

	return nil
}

// <base>.<lang>[.overlay]<ext> next to the input
func translatedPath(input, targetLang string, overlay bool) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	if overlay {
		return fmt.Sprintf("%s.%s.overlay%s", base, targetLang, ext)
	}
	return fmt.Sprintf("%s.%s%s", base, targetLang, ext)
}

func apiKeyEnv(provider string) string {
	switch translate.Provider(provider) {
	case translate.ProviderGemini:
		return "GEMINI_API_KEY"
	case translate.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case translate.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "API_KEY"
	}
}

func writeTrackFile(path string, track subtitle.Track) error {
	format, ok := subtitle.FormatFromExtension(path)
	if !ok || (format != subtitle.FormatSRT && format != subtitle.FormatVTT) {
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(path))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output folder: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := subtitle.WriteTrack(file, format, track); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
