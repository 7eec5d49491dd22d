package types

import (
	"fmt"
	"time"
)

// TasteProfile is the persistent per-user representation of musical
// taste: a dense vector in embedding space plus the seed songs that
// contributed to it.
//
// The taste vector is always a (normalized or near-normalized)
// combination of the embeddings of SeedSongs and is never persisted with
// a dimension that disagrees with the embedding model in use.
type TasteProfile struct {
	// UserID identifies the owner. Profiles are keyed by user.
	UserID string `json:"user_id"`

	// TasteVector is the centroid of the seed song embeddings.
	TasteVector []float32 `json:"taste_vector"`

	// SeedSongs are the songs that built this profile, unique by
	// identity key. Insertion order carries no meaning.
	SeedSongs []SongRef `json:"seed_songs"`

	// SongCount mirrors len(SeedSongs); stored separately so callers can
	// report it without deserializing the song list.
	SongCount int `json:"song_count"`

	// Version increases monotonically with every successful update. Used
	// for optimistic concurrency control in the profile store.
	Version int64 `json:"version"`

	// CreatedAt is when the profile was first analyzed.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the profile was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks internal consistency before the profile is persisted.
func (p *TasteProfile) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("profile user ID is required")
	}
	if len(p.TasteVector) == 0 {
		return fmt.Errorf("profile for %s has an empty taste vector", p.UserID)
	}
	if len(p.SeedSongs) == 0 {
		return fmt.Errorf("profile for %s has no seed songs", p.UserID)
	}
	if p.SongCount != len(p.SeedSongs) {
		return fmt.Errorf("profile for %s: song count %d does not match %d seed songs",
			p.UserID, p.SongCount, len(p.SeedSongs))
	}
	return nil
}

// Clone returns a deep copy. Profile services hand copies to callers so
// a cached profile is never aliased by two goroutines.
func (p *TasteProfile) Clone() *TasteProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.TasteVector = append([]float32(nil), p.TasteVector...)
	cp.SeedSongs = make([]SongRef, len(p.SeedSongs))
	for i, s := range p.SeedSongs {
		cp.SeedSongs[i] = s
		cp.SeedSongs[i].Artists = append([]string(nil), s.Artists...)
		cp.SeedSongs[i].Genre = append([]string(nil), s.Genre...)
	}
	return &cp
}

// HasSeed reports whether the given song is already among the seeds,
// by identity key.
func (p *TasteProfile) HasSeed(song SongRef) bool {
	key := song.IdentityKey()
	for _, s := range p.SeedSongs {
		if s.IdentityKey() == key {
			return true
		}
	}
	return false
}
