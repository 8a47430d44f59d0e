package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vitorvargasdev/streamfluency/internal/api/handlers"
	"github.com/vitorvargasdev/streamfluency/internal/api/middleware"
	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/backup"
)

const maxJSONBody = 1 << 20

func NewRouter(a *app.App) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(a.Logger.Named("api")))
	r.Use(cors.Handler(middleware.CORSHandler(a.Config.Server.AllowedOrigins)))

	subtitleHandler := handlers.NewSubtitleHandler(a.Playback, a.Refresh)
	playerHandler := handlers.NewPlayerHandler(a.Player, a.Playback)
	navigationHandler := handlers.NewNavigationHandler(a.Playback)
	vocabularyHandler := handlers.NewVocabularyHandler(a.Vocabulary)
	settingsHandler := handlers.NewSettingsHandler(a.Settings)
	backupHandler := handlers.NewBackupHandler(a.Backup)
	lookupHandler := handlers.NewLookupHandler(a.Lookup)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		// backup files may exceed the JSON body cap
		r.With(middleware.MaxBodySize(backup.MaxFileSize+1)).Post("/backup/import", backupHandler.Import)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(maxJSONBody))

			// Subtitles
			r.Get("/subtitles", subtitleHandler.GetSubtitles)
			r.Get("/subtitles/combined", subtitleHandler.GetCombined)
			r.Post("/subtitles/refresh", subtitleHandler.Refresh)

			// Player
			r.Get("/player", playerHandler.GetState)
			r.Post("/player/seek", playerHandler.Seek)
			r.Post("/player/play", playerHandler.Play)
			r.Post("/player/pause", playerHandler.Pause)
			r.Post("/player/rate", playerHandler.SetRate)

			// Navigation
			r.Post("/navigation/previous", navigationHandler.Previous)
			r.Post("/navigation/next", navigationHandler.Next)
			r.Post("/navigation/replay", navigationHandler.Replay)
			r.Post("/navigation/loop", navigationHandler.ToggleLoop)

			// Vocabulary
			r.Get("/vocabulary", vocabularyHandler.ListItems)
			r.Post("/vocabulary", vocabularyHandler.CreateItem)
			r.Delete("/vocabulary", vocabularyHandler.ClearAll)
			r.Get("/vocabulary/exists", vocabularyHandler.Exists)
			r.Get("/vocabulary/videos", vocabularyHandler.ListVideos)
			r.Get("/vocabulary/error", vocabularyHandler.LastError)
			r.Patch("/vocabulary/{id}", vocabularyHandler.UpdateItem)
			r.Delete("/vocabulary/{id}", vocabularyHandler.DeleteItem)

			// Settings
			r.Get("/settings", settingsHandler.GetSettings)
			r.Put("/settings/languages", settingsHandler.SetLanguages)
			r.Put("/settings/providers", settingsHandler.SetProviders)
			r.Post("/settings/toggle/{toggle}", settingsHandler.Toggle)

			// Backup
			r.Post("/backup/export", backupHandler.Export)
			r.Get("/backup/schedule", backupHandler.GetSchedule)
			r.Put("/backup/schedule", backupHandler.SetSchedule)

			// Lookup
			r.Get("/lookup", lookupHandler.Lookup)
		})
	})

	return r
}
