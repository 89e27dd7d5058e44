// Package spotify wraps the Spotify Web API for catalog reads and manages
// per-user OAuth credentials stored in the profile store.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// APIError reports a non-2xx response from the Spotify Web API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error %d: %s", e.Status, e.Message)
}

// Client wraps the Spotify Web API for a single user's access token.
type Client struct {
	api *spotify.Client
}

// NewClient creates a catalog client authenticated with the given access
// token. A non-nil base client carries the configured outbound timeout.
func NewClient(ctx context.Context, accessToken string, base *http.Client) *Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return &Client{api: spotify.New(oauth2.NewClient(ctx, src))}
}

// Profile retrieves the connected user's Spotify profile.
func (c *Client) Profile(ctx context.Context) (*spotify.PrivateUser, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, wrapAPIError(err, "fetching profile")
	}
	return user, nil
}

// TopTracks retrieves the user's top tracks for a time range
// ("short_term", "medium_term" or "long_term").
func (c *Client) TopTracks(ctx context.Context, limit int, timeRange string) ([]spotify.FullTrack, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Limit(clampLimit(limit)), spotify.Timerange(toRange(timeRange)))
	if err != nil {
		return nil, wrapAPIError(err, "fetching top tracks")
	}
	return page.Tracks, nil
}

// TopArtists retrieves the user's top artists for a time range.
func (c *Client) TopArtists(ctx context.Context, limit int, timeRange string) ([]spotify.FullArtist, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx, spotify.Limit(clampLimit(limit)), spotify.Timerange(toRange(timeRange)))
	if err != nil {
		return nil, wrapAPIError(err, "fetching top artists")
	}
	return page.Artists, nil
}

// RecentlyPlayed retrieves the user's recently played tracks.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]spotify.RecentlyPlayedItem, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: spotify.Numeric(clampLimit(limit))})
	if err != nil {
		return nil, wrapAPIError(err, "fetching recently played")
	}
	return items, nil
}

// TrackMatch is the result of a catalog search for one song.
type TrackMatch struct {
	Found         bool    `json:"found"`
	PreviewURL    *string `json:"preview_url"`
	AlbumImage    *string `json:"album_image"`
	SpotifyID     *string `json:"spotify_id"`
	MatchedName   string  `json:"matched_name,omitempty"`
	MatchedArtist string  `json:"matched_artist,omitempty"`
}

// SearchTrack searches the catalog for a song by title and artist. It
// prefers a result whose artist matches the requested one (substring in
// either direction, case-insensitive) and falls back to the first hit.
// A search with no results is not an error; Found is false.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) (*TrackMatch, error) {
	query := strings.TrimSpace(title + " " + artist)
	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(5))
	if err != nil {
		return nil, wrapAPIError(err, "searching tracks")
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return &TrackMatch{Found: false}, nil
	}
	tracks := result.Tracks.Tracks

	matched := matchByArtist(tracks, artist)
	if matched == nil {
		matched = &tracks[0]
	}

	match := &TrackMatch{
		Found:         true,
		SpotifyID:     stringPtr(matched.ID.String()),
		MatchedName:   matched.Name,
		MatchedArtist: joinArtists(matched.Artists),
	}
	if matched.PreviewURL != "" {
		match.PreviewURL = stringPtr(matched.PreviewURL)
	}
	if len(matched.Album.Images) > 0 {
		match.AlbumImage = stringPtr(matched.Album.Images[0].URL)
	}
	return match, nil
}

// matchByArtist returns the first track with an artist name overlapping the
// requested one, or nil when none match.
func matchByArtist(tracks []spotify.FullTrack, artist string) *spotify.FullTrack {
	want := strings.ToLower(strings.TrimSpace(artist))
	if want == "" {
		return nil
	}
	for i := range tracks {
		for _, a := range tracks[i].Artists {
			got := strings.ToLower(a.Name)
			if strings.Contains(got, want) || strings.Contains(want, got) {
				return &tracks[i]
			}
		}
	}
	return nil
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

func stringPtr(s string) *string {
	return &s
}

// clampLimit keeps a caller-supplied limit within the API's accepted range.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 50:
		return 50
	default:
		return limit
	}
}

// toRange maps the REST query parameter values to API time ranges.
func toRange(timeRange string) spotify.Range {
	switch timeRange {
	case "short_term":
		return spotify.ShortTermRange
	case "long_term":
		return spotify.LongTermRange
	default:
		return spotify.MediumTermRange
	}
}

// wrapAPIError converts zmb3 errors into *APIError so handlers can propagate
// the upstream status without importing the vendor package.
func wrapAPIError(err error, op string) error {
	var se spotify.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, &APIError{Status: se.Status, Message: se.Message})
	}
	return fmt.Errorf("%s: %w", op, err)
}
