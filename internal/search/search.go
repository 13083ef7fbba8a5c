package search

import (
	"sort"
	"strings"

	"github.com/notekit/notekit/internal/cache"
	"github.com/notekit/notekit/internal/constants"
	interrors "github.com/notekit/notekit/internal/errors"
	"github.com/notekit/notekit/internal/logger"
	"github.com/notekit/notekit/internal/models"
	"github.com/notekit/notekit/internal/textutil"
)

// Result pairs a matched note with its relevance score.
type Result struct {
	Score int          `json:"score"`
	Note  *models.Note `json:"note"`
}

// NoteScanner is the store view the engine needs: every active note in a
// stable scan order.
type NoteScanner interface {
	ListActive() ([]*models.Note, error)
}

// Engine performs ranked substring search over active notes. Computed
// result lists are memoized in the shared cache under the normalized,
// lower-cased query; the store invalidates that cache on every data change,
// so a hit always reflects the state as of the last mutation.
type Engine struct {
	repo  NoteScanner
	cache *cache.Cache[[]Result]
}

func NewEngine(repo NoteScanner, c *cache.Cache[[]Result]) *Engine {
	return &Engine{repo: repo, cache: c}
}

// Search scores every active note against the query: a case-insensitive
// substring hit in the title counts 3, in the content 2. Notes scoring zero
// are excluded. Results sort by score descending; equal scores keep the
// scan order, so older notes rank first.
func (e *Engine) Search(query string) ([]Result, error) {
	q := strings.ToLower(textutil.Normalize(query))
	if q == "" {
		return nil, interrors.ErrEmptySearchQuery
	}

	if cached, ok := e.cache.Get(q); ok {
		logger.Debug("Search cache hit for %q", q)
		return cached, nil
	}

	notes, err := e.repo.ListActive()
	if err != nil {
		return nil, err
	}

	results := []Result{}
	for _, note := range notes {
		score := 0
		if strings.Contains(strings.ToLower(note.Title), q) {
			score += constants.TitleMatchScore
		}
		if strings.Contains(strings.ToLower(note.Content), q) {
			score += constants.ContentMatchScore
		}
		if score > 0 {
			results = append(results, Result{Score: score, Note: note})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	e.cache.Put(q, results)
	logger.Debug("Search %q scanned %d notes, %d matched", q, len(notes), len(results))
	return results, nil
}
