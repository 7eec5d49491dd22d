// Package links builds platform deep links and playable references for
// recommended songs. Link construction is purely local string work and
// never fails; resolving a playable video ID talks to an external API
// and is therefore optional and nullable.
package links

import (
	"net/url"

	"github.com/scrypster/resonate/pkg/types"
)

// Build returns search deep links for the major platforms. The query is
// the song title plus primary artist, URL-escaped.
func Build(song types.SongRef) types.PlatformLinks {
	query := url.QueryEscape(song.Title + " " + song.PrimaryArtist())
	return types.PlatformLinks{
		Spotify:      "https://open.spotify.com/search/" + query,
		YouTubeMusic: "https://music.youtube.com/search?q=" + query,
	}
}
