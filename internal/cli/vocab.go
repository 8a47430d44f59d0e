package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

var timeNow = time.Now

var vocabCmd = &cobra.Command{
	Use:     "vocab",
	Aliases: []string{"vocabulary"},
	Short:   "Manage saved vocabulary",
}

var vocabAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Save a word or phrase",
	Long: `Save a word or phrase to the vocabulary list.

Examples:
  streamfluency vocab add house --context "the house is red" --translation casa
  streamfluency vocab add "break a leg" --video "Movie" --at 754`,
	Args: cobra.ExactArgs(1),
	RunE: runVocabAdd,
}

var vocabListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved vocabulary",
	Long: `List saved items, newest first unless --sort says otherwise.

Examples:
  streamfluency vocab list
  streamfluency vocab list --date week --sort alphabetical
  streamfluency vocab list --video "Movie" --json`,
	Args: cobra.NoArgs,
	RunE: runVocabList,
}

var vocabSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search text, translations and notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runVocabSearch,
}

var vocabUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update fields of a saved item",
	Args:  cobra.ExactArgs(1),
	RunE:  runVocabUpdate,
}

var vocabDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved item",
	Args:  cobra.ExactArgs(1),
	RunE:  runVocabDelete,
}

var vocabClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved item",
	Args:  cobra.NoArgs,
	RunE:  runVocabClear,
}

var vocabListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print vocabulary changes made by other instances",
	Long: `Stay connected to the sync transport and print every change as it
arrives, local or remote, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runVocabListen,
}

func init() {
	rootCmd.AddCommand(vocabCmd)
	vocabCmd.AddCommand(vocabAddCmd, vocabListCmd, vocabSearchCmd, vocabUpdateCmd,
		vocabDeleteCmd, vocabClearCmd, vocabListenCmd)

	for _, c := range []*cobra.Command{vocabAddCmd, vocabUpdateCmd} {
		c.Flags().String("context", "", "Subtitle line the text was taken from")
		c.Flags().String("translation", "", "Translation of the text")
		c.Flags().String("notes", "", "Free-form notes")
		c.Flags().String("video", "", "Video title")
		c.Flags().String("url", "", "Video URL")
		c.Flags().Float64("at", 0, "Position in the video in seconds")
		c.Flags().String("language", "", "Language of the text")
	}
	vocabUpdateCmd.Flags().String("text", "", "Replacement text")

	vocabListCmd.Flags().
		String("date", "all", "Date filter (all, today, week, month)")
	vocabListCmd.Flags().
		String("video", "", "Only items from this video")
	vocabListCmd.Flags().
		String("sort", "recent", "Sort order (recent, alphabetical)")
	vocabListCmd.Flags().
		String("language", "", "Only items in this language")
	vocabListCmd.Flags().
		Bool("json", false, "Print items as JSON")

	vocabClearCmd.Flags().
		Bool("yes", false, "Skip the confirmation check")
}

func runVocabAdd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	draft := vocabulary.Draft{Text: args[0]}
	draft.Translation, _ = f.GetString("translation")
	draft.Notes, _ = f.GetString("notes")
	draft.VideoTitle, _ = f.GetString("video")
	draft.VideoURL, _ = f.GetString("url")
	draft.Language, _ = f.GetString("language")
	if f.Changed("context") {
		line, _ := f.GetString("context")
		draft.Context = &line
	}
	if f.Changed("at") {
		at, _ := f.GetFloat64("at")
		draft.VideoTimestamp = &at
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if draft.Language == "" {
			draft.Language = a.Settings.Languages().Learning
		}
		if a.Vocabulary.CheckIfExists(draft.Text, draft.Context) {
			return fmt.Errorf("%q is already saved", draft.Text)
		}
		item, err := a.Vocabulary.AddItem(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %q (%s)\n", item.Text, item.ID)
		return nil
	})
}

func runVocabList(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	date, _ := f.GetString("date")
	video, _ := f.GetString("video")
	sort, _ := f.GetString("sort")
	language, _ := f.GetString("language")
	asJSON, _ := f.GetBool("json")

	filter := vocabulary.Filter{
		Date:  vocabulary.DateFilter(date),
		Video: video,
		Sort:  vocabulary.SortOption(sort),
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		var items []vocabulary.Item
		if language != "" {
			items = vocabulary.ApplyFilter(a.Vocabulary.ByLanguage(language), filter, timeNow())
		} else {
			items = a.Vocabulary.Filter(filter)
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), items)
		}
		printItems(cmd.OutOrStdout(), items)
		return nil
	})
}

func runVocabSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		printItems(cmd.OutOrStdout(), a.Vocabulary.Search(args[0]))
		return nil
	})
}

// patch holding only the flags that were set
func patchFromFlags(cmd *cobra.Command) vocabulary.Patch {
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}

	p := vocabulary.Patch{
		Text:        str("text"),
		Context:     str("context"),
		Translation: str("translation"),
		Notes:       str("notes"),
		VideoTitle:  str("video"),
		VideoURL:    str("url"),
		Language:    str("language"),
	}
	if f.Changed("at") {
		at, _ := f.GetFloat64("at")
		p.VideoTimestamp = &at
	}
	return p
}

func runVocabUpdate(cmd *cobra.Command, args []string) error {
	patch := patchFromFlags(cmd)
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		item, err := a.Vocabulary.UpdateItem(ctx, args[0], patch)
		if err != nil {
			return err
		}
		printItems(cmd.OutOrStdout(), []vocabulary.Item{item})
		return nil
	})
}

func runVocabDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if _, ok := a.Vocabulary.Get(args[0]); !ok {
			return fmt.Errorf("no item with id %s", args[0])
		}
		if err := a.Vocabulary.DeleteItem(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	})
}

func runVocabClear(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("refusing to clear the vocabulary without --yes")
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		n := a.Vocabulary.Len()
		if err := a.Vocabulary.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d items\n", n)
		return nil
	})
}

func runVocabListen(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		events := make(chan vocabulary.Event, 16)
		unsubscribe := a.Vocabulary.Subscribe(func(ev vocabulary.Event) {
			select {
			case events <- ev:
			default:
				logger.Warnw("Dropping vocabulary event, printer is behind", "action", ev.Action)
			}
		})
		defer unsubscribe()

		fmt.Fprintf(out, "Listening for vocabulary changes (%d items)\n", a.Vocabulary.Len())
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				origin := "local"
				if ev.Remote {
					origin = "remote"
				}
				fmt.Fprintf(out, "%s %s %s (%d items)\n", origin, ev.Action, ev.ID, a.Vocabulary.Len())
			}
		}
	})
}
