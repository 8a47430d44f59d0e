package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change user settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var setLanguagesCmd = &cobra.Command{
	Use:   "set-languages [native] [learning]",
	Short: "Choose the native and learning languages",
	Long: `Choose the native and learning languages. Subtitles are refetched by
every running instance that shares the same storage.

Examples:
  streamfluency settings set-languages pt-BR en
  streamfluency settings set-languages es ja`,
	Args: cobra.ExactArgs(2),
	RunE: runSetLanguages,
}

var toggleCmd = &cobra.Command{
	Use:       "toggle [setting]",
	Short:     "Flip a boolean setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: toggleNames(),
	RunE:      runToggle,
}

var setProvidersCmd = &cobra.Command{
	Use:   "set-providers",
	Short: "Choose translation and dictionary providers",
	Args:  cobra.NoArgs,
	RunE:  runSetProviders,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, setLanguagesCmd, toggleCmd, setProvidersCmd)

	toggleCmd.Long = "Flip a boolean setting: " + strings.Join(toggleNames(), ", ")

	setProvidersCmd.Flags().
		String("translation", "", "Translation provider id")
	setProvidersCmd.Flags().
		String("dictionary", "", "Dictionary provider id")
	setProvidersCmd.Flags().
		String("target", "", "Translation target language")
}

func toggleNames() []string {
	toggles := settings.Toggles()
	names := make([]string, len(toggles))
	for i, t := range toggles {
		names[i] = string(t)
	}
	return names
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		return printJSON(cmd.OutOrStdout(), a.Settings.Get())
	})
}

func runSetLanguages(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Settings.SetLanguages(ctx, args[0], args[1]); err != nil {
			return err
		}
		langs := a.Settings.Languages()
		fmt.Fprintf(cmd.OutOrStdout(), "Native: %s, learning: %s\n", langs.Native, langs.Learning)
		return nil
	})
}

func runToggle(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		next, err := a.Settings.Toggle(ctx, settings.Toggle(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), next)
	})
}

func runSetProviders(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	translation, _ := f.GetString("translation")
	dictionary, _ := f.GetString("dictionary")
	target, _ := f.GetString("target")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if translation != "" {
			if _, err := a.Settings.SetTranslationProvider(ctx, translation); err != nil {
				return err
			}
		}
		if dictionary != "" {
			if _, err := a.Settings.SetDictionaryProvider(ctx, dictionary); err != nil {
				return err
			}
		}
		if target != "" {
			if _, err := a.Settings.SetTargetLanguage(ctx, target); err != nil {
				return err
			}
		}
		return printJSON(cmd.OutOrStdout(), a.Settings.Get().Providers)
	})
}
