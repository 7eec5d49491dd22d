package engine

import (
	"math"

	"github.com/scrypster/resonate/pkg/types"
)

// Implicit feedback signal weights.
const (
	completedPlayScore = 0.5  // completed or long (>60s) play
	skippedPlayScore   = -0.5 // very short (<10s) play
	repeatPlayScore    = 0.3  // per repeat beyond the first
	longPlaySeconds    = 60
	skipThresholdSecs  = 10
)

// FeedbackScores derives a per-song feedback table from recent listening
// events. Keys are feedback keys (lowercased title + first artist);
// values land in [-1,1] after normalization.
//
// Signals: a completed or long play counts for the song, a very short
// play counts against it, and repeat plays add a smaller bonus per
// repeat. The accumulated values are divided by the global maximum
// absolute score so the strongest signal maps to ±1. The table is
// rebuilt from scratch on every recommendation call and never persisted.
func FeedbackScores(events []types.PlayEvent) map[string]float64 {
	if len(events) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, e := range events {
		key := e.Song().FeedbackKey()

		if e.Completed || e.DurationSeconds > longPlaySeconds {
			scores[key] += completedPlayScore
		}
		if e.DurationSeconds > 0 && e.DurationSeconds < skipThresholdSecs {
			scores[key] += skippedPlayScore
		}
		if e.PlayCount > 1 {
			scores[key] += repeatPlayScore * float64(e.PlayCount-1)
		}
	}

	// Normalize by the global maximum so the table's range is [-1,1].
	// One extreme signal compresses everything else; preserved behavior.
	var maxAbs float64
	for _, v := range scores {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs > 0 {
		for k, v := range scores {
			scores[k] = v / maxAbs
		}
	}
	return scores
}
