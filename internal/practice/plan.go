// Package practice generates song practice plans and validates the video
// resources the model attaches to them.
package practice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/justestif/guitarcoach/internal/config"
	"github.com/justestif/guitarcoach/internal/openai"
	"github.com/justestif/guitarcoach/internal/youtube"
)

const (
	systemRole = "You are GuitarCoach, a guitar instructor. Output ONLY valid JSON. Provide YouTube links only."

	temperature = 0.7
	maxTokens   = 900

	defaultMinutesPerDay = 15
	defaultDaysPerWeek   = 5
	defaultSkillLevel    = "beginner"

	// maxResources caps the validated resources list in both modes.
	maxResources = 3
)

// ErrInvalidPlan is returned when the model output is not a JSON object.
var ErrInvalidPlan = errors.New("model did not return valid JSON")

// youtubeHosts are the accepted resource URL hosts after normalization.
var youtubeHosts = map[string]bool{
	"youtube.com": true,
	"youtu.be":    true,
}

// TextGenerator produces a completion for a role-tagged prompt pair.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// VideoSearcher resolves a query to the top video result. *youtube.Client
// satisfies it; nil disables search-then-resolve link resolution.
type VideoSearcher interface {
	Search(ctx context.Context, query string) (*youtube.Video, error)
}

// Request describes the practice plan the user wants.
type Request struct {
	SongTitle     string   `json:"song_title"`
	Artist        string   `json:"artist"`
	MinutesPerDay int      `json:"minutes_per_day"`
	DaysPerWeek   int      `json:"days_per_week"`
	Goals         []string `json:"goals"`
	Struggles     []string `json:"struggles"`
	SkillLevel    string   `json:"skill_level"`
}

// Plan is the generated plan: an arbitrary JSON object whose "resources"
// list has been validated and capped.
type Plan map[string]any

// Planner builds the plan prompt and validates the model's output.
type Planner struct {
	ai     TextGenerator
	videos VideoSearcher
	mode   config.ResourceMode
}

// NewPlanner creates a practice planner. videos may be nil; in
// search-then-resolve mode that degrades to an empty resources list.
func NewPlanner(ai TextGenerator, videos VideoSearcher, mode config.ResourceMode) *Planner {
	return &Planner{ai: ai, videos: videos, mode: mode}
}

// Generate produces a validated practice plan for the request.
func (p *Planner) Generate(ctx context.Context, req *Request) (Plan, error) {
	payload, err := json.Marshal(promptPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling plan payload: %w", err)
	}

	content, err := p.ai.ChatCompletion(ctx, systemRole, string(payload), temperature, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating practice plan: %w", err)
	}

	return p.finalize(ctx, content)
}

// promptPayload assembles the JSON document sent as the user prompt.
func promptPayload(req *Request) map[string]any {
	minutes := req.MinutesPerDay
	if minutes <= 0 {
		minutes = defaultMinutesPerDay
	}
	days := req.DaysPerWeek
	if days <= 0 {
		days = defaultDaysPerWeek
	}
	skill := req.SkillLevel
	if skill == "" {
		skill = defaultSkillLevel
	}
	goals := req.Goals
	if goals == nil {
		goals = []string{}
	}
	struggles := req.Struggles
	if struggles == nil {
		struggles = []string{}
	}

	return map[string]any{
		"song_title":      req.SongTitle,
		"artist":          req.Artist,
		"skill_level":     skill,
		"minutes_per_day": minutes,
		"days_per_week":   days,
		"goals":           goals,
		"struggles":       struggles,
		"rules": []string{
			"Return ONLY valid JSON. No markdown or extra text.",
			"Make the plan specific to the song provided.",
			"Include YouTube links that would help with goals/struggles.",
			"All URLs must be real YouTube links (youtube.com or youtu.be).",
			"Do NOT invent links. If unsure, omit the resource.",
		},
	}
}

// finalize parses the raw model output and validates its resources list.
func (p *Planner) finalize(ctx context.Context, raw string) (Plan, error) {
	cleaned := openai.StripFences(raw)

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	// A bare "null" unmarshals successfully into a nil map.
	if plan == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidPlan)
	}

	resources, _ := plan["resources"].([]any)

	switch p.mode {
	case config.ModeSearchResolve:
		resolved, err := p.resolveResources(ctx, resources)
		if err != nil {
			return nil, err
		}
		plan["resources"] = resolved
	default:
		plan["resources"] = filterDirectLinks(resources)
	}

	return plan, nil
}

// filterDirectLinks keeps only resources that already carry a YouTube URL,
// preserving the surviving entries verbatim and in order.
func filterDirectLinks(resources []any) []any {
	kept := []any{}
	for _, r := range resources {
		if len(kept) == maxResources {
			break
		}
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}
		link, ok := entry["url"].(string)
		if !ok || !isYouTubeURL(link) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// resolveResources replaces each of the first maxResources entries with the
// top video search result for its query. Entries with no search result are
// dropped, not replaced with a placeholder. Without a configured searcher
// the list is empty.
func (p *Planner) resolveResources(ctx context.Context, resources []any) ([]any, error) {
	resolved := []any{}
	if p.videos == nil {
		return resolved, nil
	}

	if len(resources) > maxResources {
		resources = resources[:maxResources]
	}

	for _, r := range resources {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}

		query, _ := entry["search_query"].(string)
		if query == "" {
			query, _ = entry["title"].(string)
		}
		if query == "" {
			continue
		}

		video, err := p.videos.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("resolving resource %q: %w", query, err)
		}
		if video == nil {
			continue
		}

		title, _ := entry["title"].(string)
		if title == "" {
			title = video.Title
		}
		resolved = append(resolved, map[string]any{
			"title": title,
			"url":   video.WatchURL(),
		})
	}

	return resolved, nil
}

// isYouTubeURL reports whether the URL's host, lowercased and with a leading
// "www." stripped, is one of the canonical YouTube hosts.
func isYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return youtubeHosts[host]
}
