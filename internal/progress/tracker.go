// Package progress keeps the live state of running import batches so
// callers can poll a batch started in the background.
package progress

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no snapshot exists for a batch, either
// because it was never tracked or because it expired.
var ErrNotFound = errors.New("progress not found")

// Snapshot is the observable state of one batch.
type Snapshot struct {
	LogID     uuid.UUID             `json:"log_id"`
	Processed int                   `json:"processed"`
	Total     int                   `json:"total"`
	Percent   int                   `json:"percent"`
	Done      bool                  `json:"done"`
	Summary   *domain.ImportSummary `json:"summary,omitempty"`
	Results   []domain.ImportResult `json:"results,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Tracker stores snapshots keyed by import log id.
type Tracker interface {
	Update(ctx context.Context, logID uuid.UUID, processed, total int) error
	Finish(ctx context.Context, logID uuid.UUID, results []domain.ImportResult) error
	Get(ctx context.Context, logID uuid.UUID) (Snapshot, error)
}

// Percent rounds processed/total to the nearest whole percentage.
func Percent(processed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(processed) / float64(total)))
}

func running(logID uuid.UUID, processed, total int, at time.Time) Snapshot {
	return Snapshot{
		LogID:     logID,
		Processed: processed,
		Total:     total,
		Percent:   Percent(processed, total),
		UpdatedAt: at,
	}
}

func finished(logID uuid.UUID, results []domain.ImportResult, at time.Time) Snapshot {
	summary := domain.Summarize(results)
	return Snapshot{
		LogID:     logID,
		Processed: summary.Total,
		Total:     summary.Total,
		Percent:   100,
		Done:      true,
		Summary:   &summary,
		Results:   results,
		UpdatedAt: at,
	}
}
