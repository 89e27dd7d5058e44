package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/justestif/guitarcoach/internal/practice"
	"github.com/justestif/guitarcoach/internal/recommend"
	"github.com/justestif/guitarcoach/internal/spotify"
	"github.com/justestif/guitarcoach/internal/store"
	"github.com/justestif/guitarcoach/internal/supabase"
)

// ProfileStore persists per-user Spotify credentials.
// *store.ProfileRepository satisfies it.
type ProfileStore interface {
	GetSpotifyCredentials(ctx context.Context, userID string) (*store.SpotifyCredentials, error)
	UpdateSpotifyCredentials(ctx context.Context, userID string, creds *store.SpotifyCredentials) error
	ClearSpotifyCredentials(ctx context.Context, userID string) error
}

// Handlers contains the HTTP handlers for the backend API.
type Handlers struct {
	log         zerolog.Logger
	frontendURL string

	auth     *spotifyauth.Authenticator
	users    *supabase.Client
	profiles ProfileStore
	tokens   *spotify.TokenManager
	recs     *recommend.Service
	planner  *practice.Planner

	// httpClient is the shared outbound client carrying the configured
	// timeout; nil means defaults.
	httpClient *http.Client
}

// NewHandlers creates a Handlers instance with all collaborators injected.
func NewHandlers(
	log zerolog.Logger,
	frontendURL string,
	auth *spotifyauth.Authenticator,
	users *supabase.Client,
	profiles ProfileStore,
	tokens *spotify.TokenManager,
	recs *recommend.Service,
	planner *practice.Planner,
	httpClient *http.Client,
) *Handlers {
	return &Handlers{
		log:         log,
		frontendURL: frontendURL,
		auth:        auth,
		users:       users,
		profiles:    profiles,
		tokens:      tokens,
		recs:        recs,
		planner:     planner,
		httpClient:  httpClient,
	}
}

// Routes registers every endpoint on the router.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/api/health", h.Health)
	r.Get("/api/me", h.requireUser(h.CurrentUser))

	r.Route("/api/spotify", func(r chi.Router) {
		r.Get("/login", h.SpotifyLogin)
		r.Get("/callback", h.SpotifyCallback)
		r.Post("/disconnect", h.requireUser(h.SpotifyDisconnect))
		r.Get("/me", h.requireUser(h.SpotifyProfile))
		r.Get("/top-tracks", h.requireUser(h.TopTracks))
		r.Get("/top-artists", h.requireUser(h.TopArtists))
		r.Get("/recently-played", h.requireUser(h.RecentlyPlayed))
	})

	r.Route("/api/recommendation", func(r chi.Router) {
		r.Post("/generate-song", h.requireToken(h.GenerateSong))
		r.Post("/generate-similar", h.requireToken(h.GenerateSimilar))
		r.Post("/search-spotify", h.requireUser(h.SearchSpotify))
	})

	r.Post("/api/practice-plan", h.requireUser(h.PracticePlan))
}

// Health reports service liveness (GET /api/health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CurrentUser returns the authenticated user (GET /api/me).
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

// SpotifyLogin redirects the caller to the Spotify authorization page
// (GET /api/spotify/login). The caller's auth token rides along as OAuth
// state so the callback can recover the user without a session.
func (h *Handlers) SpotifyLogin(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		// Browser redirects can't set headers; allow a query fallback.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	http.Redirect(w, r, h.auth.AuthURL(token), http.StatusTemporaryRedirect)
}

// SpotifyCallback handles the OAuth callback (GET /api/spotify/callback).
// Every failure redirects back to the frontend profile page with an error
// tag rather than rendering an API error.
func (h *Handlers) SpotifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errMsg := q.Get("error"); errMsg != "" {
		h.redirectProfile(w, r, "spotify_error", errMsg)
		return
	}

	code := q.Get("code")
	state := q.Get("state") // the caller's auth token from SpotifyLogin
	if code == "" || state == "" {
		h.redirectProfile(w, r, "spotify_error", "missing_params")
		return
	}

	token, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		h.log.Error().Err(err).Msg("spotify code exchange failed")
		h.redirectProfile(w, r, "spotify_error", "token_exchange_failed")
		return
	}

	user, err := h.users.GetUser(r.Context(), state)
	if err != nil {
		h.log.Error().Err(err).Msg("resolving user during spotify callback")
		h.redirectProfile(w, r, "spotify_error", "auth_failed")
		return
	}

	creds := &store.SpotifyCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.ExpiresAt = &expiry
	}

	if err := h.profiles.UpdateSpotifyCredentials(r.Context(), user.ID, creds); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("storing spotify credentials")
		h.redirectProfile(w, r, "spotify_error", "db_update_failed")
		return
	}

	h.redirectProfile(w, r, "spotify_connected", "true")
}

// SpotifyDisconnect clears the stored credentials (POST /api/spotify/disconnect).
func (h *Handlers) SpotifyDisconnect(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	err := h.profiles.ClearSpotifyCredentials(r.Context(), user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("clearing spotify credentials")
		respondError(w, http.StatusInternalServerError, "Failed to disconnect Spotify")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"spotify_connected": false})
}

// SpotifyProfile proxies the connected user's Spotify profile
// (GET /api/spotify/me). It uses the stored access token as-is, without the
// refresh gate.
func (h *Handlers) SpotifyProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	creds, err := h.profiles.GetSpotifyCredentials(r.Context(), user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("loading spotify credentials")
		respondError(w, http.StatusInternalServerError, "Failed to load Spotify credentials")
		return
	}
	if err != nil || creds.AccessToken == "" {
		respondError(w, http.StatusBadRequest, "Spotify not connected")
		return
	}

	profile, err := spotify.NewClient(r.Context(), creds.AccessToken, h.httpClient).Profile(r.Context())
	if err != nil {
		h.spotifyError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// TopTracks returns the user's top tracks (GET /api/spotify/top-tracks).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	h.withCatalog(w, r, func(client *spotify.Client) (any, error) {
		tracks, err := client.TopTracks(r.Context(), queryInt(r, "limit", 20), r.URL.Query().Get("time_range"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": tracks}, nil
	})
}

// TopArtists returns the user's top artists (GET /api/spotify/top-artists).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	h.withCatalog(w, r, func(client *spotify.Client) (any, error) {
		artists, err := client.TopArtists(r.Context(), queryInt(r, "limit", 20), r.URL.Query().Get("time_range"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": artists}, nil
	})
}

// RecentlyPlayed returns the user's recently played tracks
// (GET /api/spotify/recently-played).
func (h *Handlers) RecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	h.withCatalog(w, r, func(client *spotify.Client) (any, error) {
		items, err := client.RecentlyPlayed(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil
	})
}

// searchRequest is the body of POST /api/recommendation/search-spotify.
type searchRequest struct {
	SongName   string `json:"song_name"`
	ArtistName string `json:"artist_name"`
}

// SearchSpotify looks a generated song up in the catalog for preview URL and
// album art (POST /api/recommendation/search-spotify).
func (h *Handlers) SearchSpotify(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.withCatalog(w, r, func(client *spotify.Client) (any, error) {
		return client.SearchTrack(r.Context(), req.SongName, req.ArtistName)
	})
}

// GenerateSong generates a recommendation from listening history
// (POST /api/recommendation/generate-song).
func (h *Handlers) GenerateSong(w http.ResponseWriter, r *http.Request) {
	var req recommend.HistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	song, err := h.recs.FromHistory(r.Context(), &req)
	if err != nil {
		h.generationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, song)
}

// GenerateSimilar generates a recommendation similar to a seed track or
// artist (POST /api/recommendation/generate-similar).
func (h *Handlers) GenerateSimilar(w http.ResponseWriter, r *http.Request) {
	var req recommend.SimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	song, err := h.recs.Similar(r.Context(), &req)
	if err != nil {
		h.generationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, song)
}

// PracticePlan generates a practice plan (POST /api/practice-plan).
func (h *Handlers) PracticePlan(w http.ResponseWriter, r *http.Request) {
	var req practice.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SongTitle == "" {
		respondError(w, http.StatusBadRequest, "song_title is required")
		return
	}

	plan, err := h.planner.Generate(r.Context(), &req)
	if err != nil {
		if errors.Is(err, practice.ErrInvalidPlan) {
			respondError(w, http.StatusInternalServerError, "Model did not return valid JSON.")
			return
		}
		h.log.Error().Err(err).Msg("practice plan generation failed")
		respondError(w, http.StatusInternalServerError, "Practice plan generation failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// withCatalog runs a catalog read with a token from the refresh gate and
// maps errors to the HTTP taxonomy.
func (h *Handlers) withCatalog(w http.ResponseWriter, r *http.Request, fn func(client *spotify.Client) (any, error)) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, err := h.tokens.EnsureValidAccess(r.Context(), user.ID)
	if err != nil {
		h.spotifyError(w, err)
		return
	}

	result, err := fn(spotify.NewClient(r.Context(), token, h.httpClient))
	if err != nil {
		h.spotifyError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// spotifyError maps catalog and gate failures to responses: not connected is
// a caller problem, upstream statuses are propagated, the rest is a 500.
func (h *Handlers) spotifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, spotify.ErrNotConnected) {
		respondError(w, http.StatusBadRequest, "Spotify not connected")
		return
	}

	var apiErr *spotify.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest {
		respondError(w, apiErr.Status, "Spotify API error")
		return
	}

	h.log.Error().Err(err).Msg("spotify request failed")
	respondError(w, http.StatusInternalServerError, "Spotify request failed")
}

// generationError maps recommendation failures: a bad seed type is a caller
// problem; unparseable output and generator failures are server errors, with
// the underlying reason included for the latter.
func (h *Handlers) generationError(w http.ResponseWriter, err error) {
	if errors.Is(err, recommend.ErrUnknownSeedKind) {
		respondError(w, http.StatusBadRequest, "Invalid seed type")
		return
	}
	if errors.Is(err, recommend.ErrMalformedResponse) {
		respondError(w, http.StatusInternalServerError, "Failed to parse AI response")
		return
	}
	h.log.Error().Err(err).Msg("recommendation generation failed")
	respondError(w, http.StatusInternalServerError, "AI service error: "+err.Error())
}

// redirectProfile sends the browser back to the frontend profile page with a
// single query parameter.
func (h *Handlers) redirectProfile(w http.ResponseWriter, r *http.Request, key, value string) {
	u := h.frontendURL + "/profile?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, u, http.StatusTemporaryRedirect)
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
