package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeGenerator records the prompts it receives and returns a canned reply.
type fakeGenerator struct {
	system string
	user   string
	reply  string
	err    error
}

func (f *fakeGenerator) ChatCompletion(_ context.Context, system, user string, _ float64, _ int) (string, error) {
	f.system = system
	f.user = user
	return f.reply, f.err
}

const validReply = `{"name": "Wish You Were Here", "artist": "Pink Floyd", "difficulty": 2, "skills": ["strumming", "hammer-ons"], "description": "A classic."}`

func TestClampDifficulty(t *testing.T) {
	tests := []struct {
		name    string
		current int
		adjust  Adjustment
		want    int
	}{
		{"no adjustment", 3, AdjustNone, 3},
		{"up", 3, AdjustUp, 4},
		{"down", 3, AdjustDown, 2},
		{"up at ceiling", 5, AdjustUp, 5},
		{"down at floor", 1, AdjustDown, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampDifficulty(tt.current, tt.adjust); got != tt.want {
				t.Errorf("clampDifficulty(%d, %q) = %d, want %d", tt.current, tt.adjust, got, tt.want)
			}
		})
	}
}

func TestFromHistoryPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: validReply}
	svc := NewService(gen)

	req := &HistoryRequest{
		TopTracks: []TrackSummary{
			{Name: "Everlong", Artists: []ArtistRef{{Name: "Foo Fighters"}}},
			{Name: "Plush", Artists: []ArtistRef{{Name: "Stone Temple Pilots"}, {Name: "Someone Else"}}},
		},
		TopArtists: []ArtistSummary{
			{Name: "Foo Fighters", Genres: []string{"rock", "grunge", "post-grunge", "alt"}},
		},
		CurrentDifficulty: 2,
		AdjustDifficulty:  AdjustUp,
		PreviousSongs:     []string{"Creep", "Wonderwall"},
	}

	song, err := svc.FromHistory(context.Background(), req)
	if err != nil {
		t.Fatalf("FromHistory returned error: %v", err)
	}
	if song.Name != "Wish You Were Here" {
		t.Errorf("song name = %q", song.Name)
	}

	if gen.system != "You are a guitar song expert." {
		t.Errorf("system prompt = %q", gen.system)
	}
	for _, want := range []string{
		"- Everlong by Foo Fighters\n",
		"- Plush by Stone Temple Pilots, Someone Else\n",
		"- Foo Fighters (genres: rock, grunge, post-grunge)\n", // three genre cap
		"difficulty of 3/5", // 2 adjusted up
		"DO NOT recommend these songs (they've already been suggested): Creep, Wonderwall",
	} {
		if !strings.Contains(gen.user, want) {
			t.Errorf("prompt missing %q\nprompt:\n%s", want, gen.user)
		}
	}
}

func TestFromHistoryNoExclusionClause(t *testing.T) {
	gen := &fakeGenerator{reply: validReply}
	svc := NewService(gen)

	if _, err := svc.FromHistory(context.Background(), &HistoryRequest{}); err != nil {
		t.Fatalf("FromHistory returned error: %v", err)
	}
	if strings.Contains(gen.user, "DO NOT recommend") {
		t.Errorf("prompt has exclusion clause for empty previous songs:\n%s", gen.user)
	}
	// Zero difficulty means default, no adjustment.
	if !strings.Contains(gen.user, "difficulty of 3/5") {
		t.Errorf("prompt missing default difficulty:\n%s", gen.user)
	}
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name       string
		req        *SimilarRequest
		wantInUser []string
	}{
		{
			name: "track seed",
			req:  &SimilarRequest{Kind: SeedTrack, Name: "Everlong", ArtistName: "Foo Fighters", CurrentDifficulty: 4},
			wantInUser: []string{
				`similar to "Everlong" by Foo Fighters`,
				"difficulty level 4/5",
				`Is NOT "Everlong" itself`,
			},
		},
		{
			name: "artist seed",
			req:  &SimilarRequest{Kind: SeedArtist, Name: "Foo Fighters"},
			wantInUser: []string{
				"The student loves Foo Fighters",
				"difficulty level 3/5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: validReply}
			svc := NewService(gen)

			if _, err := svc.Similar(context.Background(), tt.req); err != nil {
				t.Fatalf("Similar returned error: %v", err)
			}
			for _, want := range tt.wantInUser {
				if !strings.Contains(gen.user, want) {
					t.Errorf("prompt missing %q\nprompt:\n%s", want, gen.user)
				}
			}
		})
	}
}

func TestSimilarUnknownKind(t *testing.T) {
	svc := NewService(&fakeGenerator{reply: validReply})

	_, err := svc.Similar(context.Background(), &SimilarRequest{Kind: "album", Name: "x"})
	if !errors.Is(err, ErrUnknownSeedKind) {
		t.Fatalf("error = %v, want ErrUnknownSeedKind", err)
	}
}

func TestParseSong(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain json", validReply, false},
		{"fenced json", "```json\n" + validReply + "\n```", false},
		{"not json", "Here's a great song for you!", true},
		{"missing field", `{"name": "X", "artist": "Y", "difficulty": 2, "skills": []}`, true},
		{"null field", `{"name": null, "artist": "Y", "difficulty": 2, "skills": [], "description": "d"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song, err := parseSong(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSong returned error: %v", err)
			}
			if song.Artist != "Pink Floyd" {
				t.Errorf("artist = %q", song.Artist)
			}
		})
	}
}

func TestGenerateFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	svc := NewService(gen)

	_, err := svc.FromHistory(context.Background(), &HistoryRequest{})
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want generation failure distinct from parse failure", err)
	}
}
