package practice

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/justestif/guitarcoach/internal/config"
	"github.com/justestif/guitarcoach/internal/youtube"
)

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

// fakeSearcher maps queries to canned videos; unknown queries yield nil.
type fakeSearcher struct {
	videos  map[string]*youtube.Video
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*youtube.Video, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.videos[query], nil
}

func planReply(resources []map[string]any) string {
	body, _ := json.Marshal(map[string]any{
		"overview":  "Work through the riff slowly.",
		"resources": resources,
	})
	return string(body)
}

func TestGeneratePromptPayload(t *testing.T) {
	gen := &fakeGenerator{reply: planReply(nil)}
	p := NewPlanner(gen, nil, config.ModeDirectLink)

	_, err := p.Generate(context.Background(), &Request{SongTitle: "Everlong", Artist: "Foo Fighters"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(gen.user), &payload); err != nil {
		t.Fatalf("user prompt is not JSON: %v", err)
	}

	if payload["song_title"] != "Everlong" {
		t.Errorf("song_title = %v", payload["song_title"])
	}
	if payload["skill_level"] != "beginner" {
		t.Errorf("skill_level = %v, want default", payload["skill_level"])
	}
	if payload["minutes_per_day"] != float64(15) {
		t.Errorf("minutes_per_day = %v, want default", payload["minutes_per_day"])
	}
	if payload["days_per_week"] != float64(5) {
		t.Errorf("days_per_week = %v, want default", payload["days_per_week"])
	}
	if !strings.Contains(gen.system, "Output ONLY valid JSON") {
		t.Errorf("system prompt = %q", gen.system)
	}
}

func TestGenerateDirectLinkMode(t *testing.T) {
	resources := []map[string]any{
		{"title": "one", "url": "https://youtube.com/watch?v=1"},
		{"title": "bad", "url": "https://evil.com/x"},
		{"title": "two", "url": "https://youtu.be/2"},
		{"title": "three", "url": "https://www.youtube.com/watch?v=3"},
		{"title": "four", "url": "https://x.com/4"},
	}
	gen := &fakeGenerator{reply: planReply(resources)}
	p := NewPlanner(gen, nil, config.ModeDirectLink)

	plan, err := p.Generate(context.Background(), &Request{SongTitle: "Everlong"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	got, ok := plan["resources"].([]any)
	if !ok {
		t.Fatalf("resources has type %T", plan["resources"])
	}
	wantURLs := []string{
		"https://youtube.com/watch?v=1",
		"https://youtu.be/2",
		"https://www.youtube.com/watch?v=3",
	}
	if len(got) != len(wantURLs) {
		t.Fatalf("kept %d resources, want %d", len(got), len(wantURLs))
	}
	for i, want := range wantURLs {
		entry := got[i].(map[string]any)
		if entry["url"] != want {
			t.Errorf("resource %d url = %v, want %v", i, entry["url"], want)
		}
	}

	// Other plan fields pass through untouched.
	if plan["overview"] != "Work through the riff slowly." {
		t.Errorf("overview = %v", plan["overview"])
	}
}

func TestGenerateSearchResolveMode(t *testing.T) {
	resources := []map[string]any{
		{"title": "Everlong lesson", "search_query": "everlong guitar lesson"},
		{"title": "Obscure tutorial"}, // falls back to title, finds nothing
		{"search_query": "strumming basics"},
		{"title": "Fourth", "search_query": "never reached"},
	}
	gen := &fakeGenerator{reply: planReply(resources)}
	searcher := &fakeSearcher{videos: map[string]*youtube.Video{
		"everlong guitar lesson": {ID: "abc", Title: "Everlong Guitar Lesson"},
		"strumming basics":       {ID: "def", Title: "Strumming Basics"},
	}}
	p := NewPlanner(gen, searcher, config.ModeSearchResolve)

	plan, err := p.Generate(context.Background(), &Request{SongTitle: "Everlong"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	// Only the first three entries are considered.
	wantQueries := []string{"everlong guitar lesson", "Obscure tutorial", "strumming basics"}
	if !reflect.DeepEqual(searcher.queries, wantQueries) {
		t.Errorf("queries = %v, want %v", searcher.queries, wantQueries)
	}

	got := plan["resources"].([]any)
	if len(got) != 2 {
		t.Fatalf("resolved %d resources, want 2 (no-result entry dropped)", len(got))
	}

	first := got[0].(map[string]any)
	if first["title"] != "Everlong lesson" {
		t.Errorf("first title = %v, want model title kept", first["title"])
	}
	if first["url"] != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("first url = %v", first["url"])
	}

	second := got[1].(map[string]any)
	if second["title"] != "Strumming Basics" {
		t.Errorf("second title = %v, want video title fallback", second["title"])
	}
}

func TestGenerateSearchResolveWithoutSearcher(t *testing.T) {
	resources := []map[string]any{
		{"title": "lesson", "search_query": "q"},
	}
	gen := &fakeGenerator{reply: planReply(resources)}
	p := NewPlanner(gen, nil, config.ModeSearchResolve)

	plan, err := p.Generate(context.Background(), &Request{SongTitle: "x"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := plan["resources"].([]any); len(got) != 0 {
		t.Errorf("resources = %v, want empty without a searcher", got)
	}
}

func TestGenerateSearchError(t *testing.T) {
	resources := []map[string]any{{"title": "lesson", "search_query": "q"}}
	gen := &fakeGenerator{reply: planReply(resources)}
	searcher := &fakeSearcher{err: errors.New("quota exceeded")}
	p := NewPlanner(gen, searcher, config.ModeSearchResolve)

	if _, err := p.Generate(context.Background(), &Request{SongTitle: "x"}); err == nil {
		t.Fatal("expected search error to propagate")
	}
}

func TestGenerateInvalidPlan(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "Sure! Here's your plan:"},
		{"fenced prose", "```\nnot json\n```"},
		{"null literal", "null"},
		{"fenced null", "```json\nnull\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply}
			p := NewPlanner(gen, nil, config.ModeDirectLink)

			_, err := p.Generate(context.Background(), &Request{SongTitle: "x"})
			if !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("error = %v, want ErrInvalidPlan", err)
			}
		})
	}
}

func TestIsYouTubeURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://youtube.com/watch?v=1", true},
		{"https://www.youtube.com/watch?v=1", true},
		{"https://YOUTUBE.com/watch?v=1", true},
		{"https://youtu.be/1", true},
		{"https://music.youtube.com/watch?v=1", false},
		{"https://evil.com/youtube.com", false},
		{"not a url at all ://", false},
	}

	for _, tt := range tests {
		if got := isYouTubeURL(tt.url); got != tt.want {
			t.Errorf("isYouTubeURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
