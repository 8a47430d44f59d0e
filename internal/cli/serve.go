package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/api"
	"github.com/vitorvargasdev/streamfluency/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Run the JSON API used by browser overlays and other front ends.

Examples:
  streamfluency serve
  streamfluency serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().
		String("addr", "", "Listen address (defaults to server.addr from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if addr == "" {
			addr = a.Config.Server.Addr
		}
		a.Refresh(ctx)
		a.Playback.Start()
		defer a.Playback.Stop()
		return api.Serve(ctx, addr, api.NewRouter(a), a.Logger.Named("server"))
	})
}
