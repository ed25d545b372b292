package expert

import (
	"math"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/models"
)

// minimumBlock is the smallest billable unit of expert time.
const minimumBlock = 30 * time.Minute

// Invoice is the final statement for a completed expert session.
type Invoice struct {
	Category      models.ServiceCategory `json:"category"`
	ElapsedSec    int                    `json:"elapsed_sec"`
	ActualMinutes int                    `json:"actual_minutes"`
	BilledHours   float64                `json:"billed_hours"`
	HourlyRate    float64                `json:"hourly_rate"`
	Total         float64                `json:"total"`
}

// BillableBlocks rounds elapsed time up to whole minutes, then up to
// half-hour blocks, with a one-block minimum for any non-zero session.
func BillableBlocks(elapsed time.Duration) int {
	minutes := int(math.Ceil(elapsed.Seconds() / 60))
	if minutes <= 0 {
		minutes = 1
	}
	blocks := int(math.Ceil(float64(minutes) / 30))
	if blocks < 1 {
		blocks = 1
	}
	return blocks
}

// MakeInvoice prices an elapsed session against the category's hourly rate.
func MakeInvoice(category models.ServiceCategory, elapsed time.Duration) Invoice {
	blocks := BillableBlocks(elapsed)
	hours := float64(blocks) * 0.5
	rate := models.RateFor(category)
	return Invoice{
		Category:      category,
		ElapsedSec:    int(elapsed.Seconds()),
		ActualMinutes: int(math.Ceil(elapsed.Seconds() / 60)),
		BilledHours:   hours,
		HourlyRate:    rate,
		Total:         hours * rate,
	}
}
