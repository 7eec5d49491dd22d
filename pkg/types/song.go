// Package types defines the core domain types for the Resonate
// recommendation system: song references, taste profiles, scored
// candidates and listening history events.
//
// Types in this package are plain values with no behavior beyond
// validation and identity derivation. All services operate on these
// types; none of them reach back into storage or providers.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// SongRef identifies a song by its metadata. It is the unit of input for
// taste analysis and the unit of output for candidate retrieval.
//
// Identity is derived from the title and artist list only (see
// IdentityKey); album, artwork and genre do not participate in identity.
type SongRef struct {
	// Title is the song title as supplied by the caller or search source.
	Title string `json:"title"`

	// Artists is the ordered list of performing artists. The first entry
	// is treated as the primary artist for retrieval and diversity
	// accounting. Must be non-empty.
	Artists []string `json:"artists"`

	// Genre is an optional list of genre labels.
	Genre []string `json:"genre,omitempty"`
}

// Validate checks that the song reference is well formed. Malformed
// records are rejected at the ingestion boundary rather than deep inside
// scoring.
func (s SongRef) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("song title is required")
	}
	if len(s.Artists) == 0 {
		return fmt.Errorf("song %q: at least one artist is required", s.Title)
	}
	for i, a := range s.Artists {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("song %q: artist %d is empty", s.Title, i)
		}
	}
	return nil
}

// PrimaryArtist returns the first artist, or an empty string when the
// reference carries no artists at all.
func (s SongRef) PrimaryArtist() string {
	if len(s.Artists) == 0 {
		return ""
	}
	return s.Artists[0]
}

// IdentityKey returns the canonical dedupe key for a song: the lowercased
// title joined with the sorted, lowercased artist list. Two SongRefs with
// the same key are treated as the same song everywhere in the system
// (seed dedupe, candidate dedupe, embedding cache, feedback lookup).
func (s SongRef) IdentityKey() string {
	artists := make([]string, len(s.Artists))
	for i, a := range s.Artists {
		artists[i] = strings.ToLower(strings.TrimSpace(a))
	}
	sort.Strings(artists)
	return strings.ToLower(strings.TrimSpace(s.Title)) + "\x00" + strings.Join(artists, "|")
}

// FeedbackKey returns the looser key used by the listening-history
// feedback table: lowercased title plus lowercased first artist. History
// entries rarely carry the full artist list, so identity is relaxed here.
func (s SongRef) FeedbackKey() string {
	return strings.ToLower(strings.TrimSpace(s.Title)) + "\x00" +
		strings.ToLower(strings.TrimSpace(s.PrimaryArtist()))
}

// GenreSignature returns the sorted, lowercased genre list joined with
// "|". Used by the diversity filter as a cheap proxy for an
// energy/tempo cluster.
func (s SongRef) GenreSignature() string {
	genres := make([]string, len(s.Genre))
	for i, g := range s.Genre {
		genres[i] = strings.ToLower(strings.TrimSpace(g))
	}
	sort.Strings(genres)
	return strings.Join(genres, "|")
}

// DedupeSongs returns songs unique by identity key, preserving first
// occurrence order.
func DedupeSongs(songs []SongRef) []SongRef {
	seen := make(map[string]struct{}, len(songs))
	out := make([]SongRef, 0, len(songs))
	for _, s := range songs {
		key := s.IdentityKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidateSongs validates every song in the list and reports the first
// failure with its index.
func ValidateSongs(songs []SongRef) error {
	for i, s := range songs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("song %d: %w", i, err)
		}
	}
	return nil
}
