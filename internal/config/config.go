// Package config collects process-wide configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAddr is the default listen address for the HTTP server.
const DefaultAddr = "127.0.0.1:8000"

// ErrMissingEnv is returned when a required environment variable is not set.
var ErrMissingEnv = errors.New("missing required environment variable")

// ResourceMode selects how practice-plan resources are validated.
type ResourceMode string

const (
	// ModeDirectLink keeps only resources whose URL already points at YouTube.
	ModeDirectLink ResourceMode = "direct"
	// ModeSearchResolve resolves resources through the YouTube search API.
	ModeSearchResolve ResourceMode = "search"
)

// SupabaseConfig holds the auth service and profile store settings.
type SupabaseConfig struct {
	URL string
	Key string
}

// SpotifyConfig holds Spotify OAuth application credentials.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// OpenAIConfig holds the text-generation service settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional override, defaults to the public API
	Model   string
}

// YouTubeConfig holds the video search API settings.
// The API key is optional; without it search-then-resolve mode yields no links.
type YouTubeConfig struct {
	APIKey string
}

// Config is the full application configuration, loaded once at startup.
type Config struct {
	Addr        string
	FrontendURL string
	DatabaseURL string

	Supabase SupabaseConfig
	Spotify  SpotifyConfig
	OpenAI   OpenAIConfig
	YouTube  YouTubeConfig

	// PracticeResources selects the practice-plan resource validation mode.
	PracticeResources ResourceMode

	// HTTPTimeout applies to all outbound HTTP calls. Zero means no explicit
	// timeout; no default is invented here.
	HTTPTimeout time.Duration
}

// Load reads configuration from the environment. Every missing required
// variable is reported in the returned error.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:        envOr("ADDR", DefaultAddr),
		FrontendURL: os.Getenv("FRONTEND_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Supabase: SupabaseConfig{
			URL: os.Getenv("SUPABASE_URL"),
			Key: os.Getenv("SUPABASE_KEY"),
		},
		Spotify: SpotifyConfig{
			ClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("SPOTIFY_REDIRECT_URI"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
		},
		YouTube: YouTubeConfig{
			APIKey: os.Getenv("YOUTUBE_API_KEY"),
		},
		PracticeResources: ResourceMode(envOr("PRACTICE_RESOURCE_MODE", string(ModeDirectLink))),
	}

	var missing []string
	for _, v := range []struct {
		name  string
		value string
	}{
		{"FRONTEND_URL", cfg.FrontendURL},
		{"DATABASE_URL", cfg.DatabaseURL},
		{"SUPABASE_URL", cfg.Supabase.URL},
		{"SUPABASE_KEY", cfg.Supabase.Key},
		{"SPOTIFY_CLIENT_ID", cfg.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", cfg.Spotify.ClientSecret},
		{"SPOTIFY_REDIRECT_URI", cfg.Spotify.RedirectURI},
		{"OPENAI_API_KEY", cfg.OpenAI.APIKey},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	switch cfg.PracticeResources {
	case ModeDirectLink, ModeSearchResolve:
	default:
		return nil, fmt.Errorf("invalid PRACTICE_RESOURCE_MODE %q (want %q or %q)",
			cfg.PracticeResources, ModeDirectLink, ModeSearchResolve)
	}

	if raw := os.Getenv("HTTP_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS %q", raw)
		}
		cfg.HTTPTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// envOr returns the value of the environment variable or a fallback.
func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
