package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [text]",
	Short: "Translate a selection and define single words",
	Long: `Translate text with the configured provider, falling back to the others
on failure. Single words are also looked up in the dictionary.

Examples:
  streamfluency lookup house
  streamfluency lookup "break a leg" --copy
  streamfluency lookup --paste`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().
		Bool("copy", false, "Copy the translation to the clipboard")
	lookupCmd.Flags().
		Bool("paste", false, "Read the text from the clipboard")
	lookupCmd.Flags().
		Bool("save", false, "Save the text and its translation to the vocabulary")
	lookupCmd.Flags().
		Bool("json", false, "Print the result as JSON")
}

func runLookup(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	copyResult, _ := f.GetBool("copy")
	paste, _ := f.GetBool("paste")
	save, _ := f.GetBool("save")
	asJSON, _ := f.GetBool("json")

	var text string
	switch {
	case len(args) == 1:
		text = args[0]
	case paste:
		clip, err := clipboard.ReadAll()
		if err != nil {
			return fmt.Errorf("failed to read clipboard: %w", err)
		}
		text = clip
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("nothing to look up: pass text or use --paste")
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		result := a.Lookup(ctx, text)
		out := cmd.OutOrStdout()
		if asJSON {
			if err := printJSON(out, result); err != nil {
				return err
			}
		} else {
			printLookup(out, result)
		}

		translated := ""
		if result.Translation != nil && result.Translation.Error == "" {
			translated = result.Translation.TranslatedText
		}
		if copyResult && translated != "" {
			if err := clipboard.WriteAll(translated); err != nil {
				logger.Warnw("Failed to copy translation", "error", err)
			}
		}
		if save {
			if a.Vocabulary.CheckIfExists(text, nil) {
				fmt.Fprintf(out, "%q is already saved\n", text)
				return nil
			}
			item, err := a.Vocabulary.AddItem(ctx, vocabulary.Draft{
				Text:        text,
				Translation: translated,
				Language:    a.Settings.Languages().Learning,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %q (%s)\n", item.Text, item.ID)
		}
		return nil
	})
}
