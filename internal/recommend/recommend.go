// Package recommend generates guitar song recommendations from a user's
// listening history or from a named seed track/artist.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/justestif/guitarcoach/internal/openai"
)

const (
	systemRole  = "You are a guitar song expert."
	temperature = 0.8 // variety over determinism
	maxTokens   = 500

	minDifficulty     = 1
	maxDifficulty     = 5
	defaultDifficulty = 3

	maxTracks       = 10
	maxArtists      = 10
	maxArtistGenres = 3
)

// ErrMalformedResponse is returned when the model output cannot be parsed as
// a recommendation. There is no repair or retry; the caller must resubmit.
var ErrMalformedResponse = errors.New("malformed model response")

// ErrUnknownSeedKind is returned for a similar request whose type is neither
// track nor artist.
var ErrUnknownSeedKind = errors.New("unknown seed kind")

// TextGenerator produces a completion for a role-tagged prompt pair.
// *openai.Client satisfies it.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// Adjustment nudges the target difficulty relative to the current one.
type Adjustment string

const (
	AdjustNone Adjustment = ""
	AdjustUp   Adjustment = "up"
	AdjustDown Adjustment = "down"
)

// SeedKind distinguishes the two "similar to" request shapes.
type SeedKind string

const (
	SeedTrack  SeedKind = "track"
	SeedArtist SeedKind = "artist"
)

// ArtistRef is an artist reference inside a track summary.
type ArtistRef struct {
	Name string `json:"name"`
}

// TrackSummary is one track of the user's listening history.
type TrackSummary struct {
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists"`
}

// ArtistSummary is one artist of the user's listening history.
type ArtistSummary struct {
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// HistoryRequest asks for a recommendation based on listening history.
type HistoryRequest struct {
	TopTracks         []TrackSummary  `json:"top_tracks"`
	TopArtists        []ArtistSummary `json:"top_artists"`
	CurrentDifficulty int             `json:"current_difficulty"`
	AdjustDifficulty  Adjustment      `json:"adjust_difficulty"`
	PreviousSongs     []string        `json:"previous_songs"`
}

// SimilarRequest asks for a recommendation similar to a named seed.
type SimilarRequest struct {
	Kind              SeedKind `json:"type"`
	Name              string   `json:"name"`
	ArtistName        string   `json:"artist_name"`
	CurrentDifficulty int      `json:"current_difficulty"`
	PreviousSongs     []string `json:"previous_songs"`
}

// Song is a generated recommendation. Difficulty bounds and skills
// cardinality are not validated here.
// TODO: validate difficulty range and skills length once the frontend
// tolerates a rejected recommendation.
type Song struct {
	Name        string   `json:"name"`
	Artist      string   `json:"artist"`
	Difficulty  int      `json:"difficulty"`
	Skills      []string `json:"skills"`
	Description string   `json:"description"`
}

// Service builds prompts, calls the text generator, and validates output.
type Service struct {
	ai TextGenerator
}

// NewService creates a recommendation service.
func NewService(ai TextGenerator) *Service {
	return &Service{ai: ai}
}

// FromHistory generates a recommendation from the user's listening history.
func (s *Service) FromHistory(ctx context.Context, req *HistoryRequest) (*Song, error) {
	target := clampDifficulty(normalizeDifficulty(req.CurrentDifficulty), req.AdjustDifficulty)
	prompt := buildHistoryPrompt(req, target)
	return s.generate(ctx, prompt)
}

// Similar generates a recommendation similar to a seed track or artist.
func (s *Service) Similar(ctx context.Context, req *SimilarRequest) (*Song, error) {
	difficulty := normalizeDifficulty(req.CurrentDifficulty)

	var prompt string
	switch req.Kind {
	case SeedTrack:
		prompt = buildSimilarTrackPrompt(req, difficulty)
	case SeedArtist:
		prompt = buildSimilarArtistPrompt(req, difficulty)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownSeedKind, req.Kind)
	}

	return s.generate(ctx, prompt)
}

func (s *Service) generate(ctx context.Context, prompt string) (*Song, error) {
	content, err := s.ai.ChatCompletion(ctx, systemRole, prompt, temperature, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating recommendation: %w", err)
	}
	return parseSong(content)
}

// parseSong parses the model output into a Song, requiring every field to be
// present after fence-stripping.
func parseSong(raw string) (*Song, error) {
	cleaned := openai.StripFences(raw)

	var fields struct {
		Name        *string   `json:"name"`
		Artist      *string   `json:"artist"`
		Difficulty  *int      `json:"difficulty"`
		Skills      *[]string `json:"skills"`
		Description *string   `json:"description"`
	}
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields.Name == nil || fields.Artist == nil || fields.Difficulty == nil ||
		fields.Skills == nil || fields.Description == nil {
		return nil, fmt.Errorf("%w: missing required field", ErrMalformedResponse)
	}

	return &Song{
		Name:        *fields.Name,
		Artist:      *fields.Artist,
		Difficulty:  *fields.Difficulty,
		Skills:      *fields.Skills,
		Description: *fields.Description,
	}, nil
}

// normalizeDifficulty substitutes the default when the caller sent nothing.
func normalizeDifficulty(difficulty int) int {
	if difficulty == 0 {
		return defaultDifficulty
	}
	return difficulty
}

// clampDifficulty applies an adjustment direction and clamps to the valid range.
func clampDifficulty(current int, adjust Adjustment) int {
	target := current
	switch adjust {
	case AdjustUp:
		target++
	case AdjustDown:
		target--
	}
	if target < minDifficulty {
		target = minDifficulty
	}
	if target > maxDifficulty {
		target = maxDifficulty
	}
	return target
}
