package auction

import (
	"time"

	"auction-service/internal/models"
)

// DefaultEndingSoonWindow is how close to the end time an auction flips to
// ENDING_SOON.
const DefaultEndingSoonWindow = 30 * time.Minute

// Evaluate maps (auction, now) to a lifecycle status. Pure and
// deterministic; it is the sole authority on status and is invoked on every
// read path as well as by the periodic sweep. The stored status field is
// only ever a cache of this function's output.
func Evaluate(a *models.Auction, now time.Time, endingSoonWindow time.Duration) models.Status {
	// A stored terminal status wins over the clock: a Dutch accept forces
	// ENDED before the end time, and cancellation is terminal everywhere.
	if a.Cancelled || a.Status == models.StatusCancelled {
		return models.StatusCancelled
	}
	if a.Status == models.StatusEnded {
		return models.StatusEnded
	}
	if now.Before(a.StartTime) {
		return models.StatusUpcoming
	}
	if now.After(a.EndTime) {
		return models.StatusEnded
	}
	if a.EndTime.Sub(now) <= endingSoonWindow {
		return models.StatusEndingSoon
	}
	return models.StatusActive
}
