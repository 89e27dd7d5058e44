package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey header = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-jwt" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"id": "9b2c", "email": "a@b.c", "role": "authenticated"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "anon-key", server.Client())

	user, err := client.GetUser(context.Background(), "user-jwt")
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if user.ID != "9b2c" || user.Email != "a@b.c" {
		t.Errorf("user = %+v", user)
	}
}

func TestGetUserErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantInvalid bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"msg": "invalid JWT"}`, true},
		{"forbidden", http.StatusForbidden, `{}`, true},
		{"ok but no id", http.StatusOK, `{"email": "a@b.c"}`, true},
		{"server error", http.StatusInternalServerError, "oops", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "k", server.Client())

			_, err := client.GetUser(context.Background(), "t")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := errors.Is(err, ErrInvalidToken); got != tt.wantInvalid {
				t.Errorf("errors.Is(err, ErrInvalidToken) = %v, want %v (err: %v)", got, tt.wantInvalid, err)
			}
		})
	}
}
