package stats

import (
	"errors"
	"time"

	interrors "github.com/notekit/notekit/internal/errors"
	"github.com/notekit/notekit/internal/models"
)

// Summary is the aggregate rollup over the note store.
type Summary struct {
	TotalNotes        int    `json:"total_notes"`
	CreatedToday      int    `json:"created_today"`
	LastUpdatedNoteID string `json:"last_updated_note_id"`
}

// Aggregator computes read-only rollups. An empty store yields zero values
// rather than an error.
type Aggregator struct {
	repo *models.NoteRepository
	now  func() time.Time
}

func NewAggregator(repo *models.NoteRepository) *Aggregator {
	return &Aggregator{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (a *Aggregator) Collect() (*Summary, error) {
	total, err := a.repo.CountActive()
	if err != nil {
		return nil, err
	}

	startOfDay := a.now().Truncate(24 * time.Hour)
	createdToday, err := a.repo.CountActiveCreatedSince(startOfDay)
	if err != nil {
		return nil, err
	}

	lastUpdated, err := a.repo.LastUpdatedNoteID()
	if err != nil {
		if !errors.Is(err, interrors.ErrNoteNotFound) {
			return nil, err
		}
		lastUpdated = ""
	}

	return &Summary{
		TotalNotes:        total,
		CreatedToday:      createdToday,
		LastUpdatedNoteID: lastUpdated,
	}, nil
}
