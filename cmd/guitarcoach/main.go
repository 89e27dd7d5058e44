package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/justestif/guitarcoach/internal/config"
	"github.com/justestif/guitarcoach/internal/openai"
	"github.com/justestif/guitarcoach/internal/practice"
	"github.com/justestif/guitarcoach/internal/recommend"
	"github.com/justestif/guitarcoach/internal/spotify"
	"github.com/justestif/guitarcoach/internal/store"
	"github.com/justestif/guitarcoach/internal/supabase"
	"github.com/justestif/guitarcoach/internal/web"
	"github.com/justestif/guitarcoach/internal/youtube"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is a development convenience; its absence is fine.
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	users := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, httpClient)

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.Spotify.ClientID),
		spotifyauth.WithClientSecret(cfg.Spotify.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.Spotify.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserTopRead,
			spotifyauth.ScopeUserReadRecentlyPlayed,
			spotifyauth.ScopeUserLibraryRead,
		),
	)

	profiles := db.Profiles()
	tokens := spotify.NewTokenManager(profiles, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, httpClient, log)

	ai := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, httpClient)
	recs := recommend.NewService(ai)

	// Leave the searcher nil unless a key is configured, so the planner can
	// tell "no searcher" apart from a client that will fail every call.
	var videos practice.VideoSearcher
	if cfg.YouTube.APIKey != "" {
		videos = youtube.NewClient(cfg.YouTube.APIKey, httpClient)
	}
	planner := practice.NewPlanner(ai, videos, cfg.PracticeResources)

	handlers := web.NewHandlers(log, cfg.FrontendURL, auth, users, profiles, tokens, recs, planner, httpClient)

	return web.NewServer(cfg, handlers, log).Run()
}
