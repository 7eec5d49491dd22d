package types

import "time"

// PlayEvent is a single listening-history entry. Implicit feedback
// (completion, early skip, repeat plays) is derived from these events at
// recommendation time; the derived scores are never persisted.
type PlayEvent struct {
	// Title and Artists identify the song that was played.
	Title   string   `json:"title"`
	Artists []string `json:"artists"`

	// DurationSeconds is how long the user listened.
	DurationSeconds float64 `json:"duration_seconds"`

	// Completed reports whether the song played to the end.
	Completed bool `json:"completed"`

	// PlayCount is the user's cumulative play count for this song at the
	// time of the event.
	PlayCount int `json:"play_count"`

	// Source records where the play came from (recommendation, search,
	// manual). Informational only.
	Source string `json:"source,omitempty"`

	// PlayedAt is when the play happened.
	PlayedAt time.Time `json:"played_at"`
}

// Song returns the event's song as a SongRef for key derivation.
func (e PlayEvent) Song() SongRef {
	return SongRef{Title: e.Title, Artists: e.Artists}
}
