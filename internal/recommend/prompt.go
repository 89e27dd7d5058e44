package recommend

import (
	"fmt"
	"strings"
)

// buildHistoryPrompt renders the listening-history instruction.
func buildHistoryPrompt(req *HistoryRequest, targetDifficulty int) string {
	var b strings.Builder

	b.WriteString("You are a guitar teacher helping a student find songs to learn.\n")
	b.WriteString(exclusionClause(req.PreviousSongs))
	b.WriteString("\n\nThe student's top tracks:\n")
	b.WriteString(trackLines(req.TopTracks))
	b.WriteString("\nThe student's top artists:\n")
	b.WriteString(artistLines(req.TopArtists))

	fmt.Fprintf(&b, `
Recommend ONE guitar song. You can use the student's listening history but
don't rely on it alone; another song by an artist they enjoy but haven't
heard yet also works.

Pick a song with a difficulty of %d/5.

In the "description", explain why the song is worth learning and how it
relates to their music taste. Also list all the guitar skills they would
develop while learning it.
`, targetDifficulty)

	b.WriteString(outputFormat(targetDifficulty))
	return b.String()
}

// buildSimilarTrackPrompt renders the "similar to this song" instruction.
func buildSimilarTrackPrompt(req *SimilarRequest, difficulty int) string {
	var b strings.Builder

	b.WriteString("You are a guitar teacher helping a student find songs to learn.\n")
	fmt.Fprintf(&b, "The student wants to learn a song similar to %q by %s.\n", req.Name, req.ArtistName)

	fmt.Fprintf(&b, `
Recommend ONE guitar song that:
1. Has a similar style, mood, or guitar techniques to %q
2. Is at difficulty level %d/5 (1=beginner, 5=expert)
3. Is NOT %q itself
`, req.Name, difficulty, req.Name)

	b.WriteString(exclusionClause(req.PreviousSongs))

	fmt.Fprintf(&b, "\n\nExplain in the description why this song is similar to %q and what guitar skills they'll develop.\n", req.Name)
	b.WriteString(outputFormat(difficulty))
	return b.String()
}

// buildSimilarArtistPrompt renders the "song by this artist" instruction.
func buildSimilarArtistPrompt(req *SimilarRequest, difficulty int) string {
	var b strings.Builder

	b.WriteString("You are a guitar teacher helping a student find songs to learn.\n")
	fmt.Fprintf(&b, "The student loves %s and wants to learn one of their songs on guitar.\n", req.Name)

	fmt.Fprintf(&b, `
Recommend ONE guitar song that:
1. Is by %s OR is very similar to %s's style
2. Is at difficulty level %d/5 (1=beginner, 5=expert)
3. Is great for learning guitar
`, req.Name, req.Name, difficulty)

	b.WriteString(exclusionClause(req.PreviousSongs))

	b.WriteString("\n\nExplain in the description why this song fits and what guitar skills they'll develop.\n")
	b.WriteString(outputFormat(difficulty))
	return b.String()
}

// trackLines renders up to maxTracks history tracks, one per line.
func trackLines(tracks []TrackSummary) string {
	if len(tracks) > maxTracks {
		tracks = tracks[:maxTracks]
	}

	var b strings.Builder
	for _, t := range tracks {
		names := make([]string, len(t.Artists))
		for i, a := range t.Artists {
			names[i] = a.Name
		}
		fmt.Fprintf(&b, "- %s by %s\n", t.Name, strings.Join(names, ", "))
	}
	return b.String()
}

// artistLines renders up to maxArtists history artists with up to
// maxArtistGenres genre tags each.
func artistLines(artists []ArtistSummary) string {
	if len(artists) > maxArtists {
		artists = artists[:maxArtists]
	}

	var b strings.Builder
	for _, a := range artists {
		genres := a.Genres
		if len(genres) > maxArtistGenres {
			genres = genres[:maxArtistGenres]
		}
		fmt.Fprintf(&b, "- %s (genres: %s)\n", a.Name, strings.Join(genres, ", "))
	}
	return b.String()
}

// exclusionClause lists already-suggested titles the model must avoid.
// An empty list yields the empty string.
func exclusionClause(previous []string) string {
	if len(previous) == 0 {
		return ""
	}
	return fmt.Sprintf("\n\nDO NOT recommend these songs (they've already been suggested): %s",
		strings.Join(previous, ", "))
}

// outputFormat describes the JSON object the model must return.
func outputFormat(difficulty int) string {
	return fmt.Sprintf(`
Respond with ONLY JSON:
{
    "name": "Song Name",
    "artist": "Artist Name",
    "difficulty": %d,
    "skills": ["tapping", "bar chords", "fast solo"],
    "description": "why this song, written differently for every song"
}
`, difficulty)
}
