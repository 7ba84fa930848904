package pipeline

import (
	"math"

	"comet-radar/internal/models"
)

// Growth computes follower velocity against the most recent prior
// snapshot. No baseline means zero growth; a zero baseline guards the
// division and reports 0.00 percent regardless of the delta.
func Growth(todayFollowers int, prior *models.DailySnapshot) (delta int, percent float64) {
	if prior == nil {
		return 0, 0
	}
	delta = todayFollowers - prior.FollowerCount
	if prior.FollowerCount <= 0 {
		return delta, 0
	}
	percent = math.Round(float64(delta)/float64(prior.FollowerCount)*100*100) / 100
	return delta, percent
}
