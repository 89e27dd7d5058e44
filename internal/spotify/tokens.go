package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/guitarcoach/internal/store"
)

// TokenURL is the Spotify accounts token endpoint.
const TokenURL = "https://accounts.spotify.com/api/token"

// expiryBuffer is subtracted from the stored expiry before comparison. It
// absorbs clock skew and the latency of the catalog call about to be made.
const expiryBuffer = 5 * time.Minute

// ErrNotConnected is returned when a user has no usable Spotify credentials:
// nothing stored, a partial record, or a refresh the provider rejected.
var ErrNotConnected = errors.New("spotify not connected")

// CredentialStore persists per-user Spotify credentials.
type CredentialStore interface {
	GetSpotifyCredentials(ctx context.Context, userID string) (*store.SpotifyCredentials, error)
	UpdateSpotifyCredentials(ctx context.Context, userID string, creds *store.SpotifyCredentials) error
}

// TokenManager decides whether a stored access token can be reused or must
// be refreshed before an upstream catalog call.
//
// Concurrent refreshes for the same user are not mutually excluded; two
// in-flight refreshes resolve by last write wins.
type TokenManager struct {
	store        CredentialStore
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewTokenManager creates a token manager backed by the given credential
// store. A nil httpClient falls back to http.DefaultClient.
func NewTokenManager(credStore CredentialStore, clientID, clientSecret string, httpClient *http.Client, log zerolog.Logger) *TokenManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenManager{
		store:        credStore,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     TokenURL,
		httpClient:   httpClient,
		log:          log,
	}
}

// EnsureValidAccess returns an access token usable for catalog calls on
// behalf of the user, refreshing and persisting it first when the stored one
// is expired or about to expire. Returns ErrNotConnected when the user has
// no usable credentials; a refresh rejected by the provider degrades to
// ErrNotConnected rather than failing hard.
func (m *TokenManager) EnsureValidAccess(ctx context.Context, userID string) (string, error) {
	creds, err := m.store.GetSpotifyCredentials(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return "", ErrNotConnected
	}

	// Fast path: token still comfortably valid, no network call.
	if creds.ExpiresAt != nil && time.Now().Before(creds.ExpiresAt.Add(-expiryBuffer)) {
		return creds.AccessToken, nil
	}

	m.log.Info().Str("user_id", userID).Msg("refreshing spotify token")

	refreshed, err := m.refresh(ctx, creds.RefreshToken)
	if err != nil {
		return "", err
	}
	if refreshed == nil {
		// Provider rejected the refresh; degrade, leave the record alone.
		return "", ErrNotConnected
	}

	expiresAt := time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	updated := &store.SpotifyCredentials{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    &expiresAt,
	}
	// The provider is not required to rotate the refresh token.
	if refreshed.RefreshToken != "" {
		updated.RefreshToken = refreshed.RefreshToken
	}

	if err := m.store.UpdateSpotifyCredentials(ctx, userID, updated); err != nil {
		return "", fmt.Errorf("persisting refreshed credentials: %w", err)
	}

	return updated.AccessToken, nil
}

// tokenResponse is the provider's refresh-grant response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// refresh exchanges a refresh token for a new access token. A non-2xx
// response is not an error: it returns (nil, nil) after logging, so the
// caller degrades to ErrNotConnected. Transport failures are errors.
func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		m.log.Warn().Int("status", resp.StatusCode).Bytes("body", body).Msg("spotify token refresh rejected")
		return nil, nil
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("refresh response missing access token")
	}

	return &parsed, nil
}
