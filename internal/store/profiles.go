package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SpotifyCredentials is one user's stored link to Spotify: OAuth tokens plus
// the access token expiry. Both tokens present means "connected"; anything
// else is treated as not connected by callers.
type SpotifyCredentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time // nullable
}

// ProfileRepository handles profile row operations.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// GetSpotifyCredentials retrieves the stored Spotify credentials for a user.
// Returns ErrNotFound if the profile row does not exist.
func (r *ProfileRepository) GetSpotifyCredentials(ctx context.Context, userID string) (*SpotifyCredentials, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT spotify_access_token, spotify_refresh_token, spotify_token_expires_at
		FROM profiles
		WHERE id = $1
	`
	var accessToken, refreshToken *string
	var expiresAt *time.Time
	err := r.pool.QueryRow(ctx, query, userID).Scan(&accessToken, &refreshToken, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	creds := &SpotifyCredentials{ExpiresAt: expiresAt}
	if accessToken != nil {
		creds.AccessToken = *accessToken
	}
	if refreshToken != nil {
		creds.RefreshToken = *refreshToken
	}
	return creds, nil
}

// UpdateSpotifyCredentials overwrites the stored Spotify credentials for a user.
func (r *ProfileRepository) UpdateSpotifyCredentials(ctx context.Context, userID string, creds *SpotifyCredentials) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrNotFound
	}

	query := `
		UPDATE profiles
		SET spotify_access_token = $2,
		    spotify_refresh_token = $3,
		    spotify_token_expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID, creds.AccessToken, creds.RefreshToken, creds.ExpiresAt)
	if err != nil {
		return fmt.Errorf("updating spotify credentials: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSpotifyCredentials removes all stored Spotify credentials for a user.
func (r *ProfileRepository) ClearSpotifyCredentials(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrNotFound
	}

	query := `
		UPDATE profiles
		SET spotify_access_token = NULL,
		    spotify_refresh_token = NULL,
		    spotify_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("clearing spotify credentials: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
