package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notekit/notekit/internal/cache"
	"github.com/notekit/notekit/internal/constants"
	interrors "github.com/notekit/notekit/internal/errors"
	"github.com/notekit/notekit/internal/textutil"
)

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const noteColumns = "id, title, content, is_deleted, created_by, updated_by, created_at, updated_at"

// sortColumns is the allow-list for user-supplied sort fields. Sort
// expressions are never built from unchecked input.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
}

// NoteRepository is the durable store for notes. Rows are soft-deleted:
// is_deleted tombstones a row out of every read path but the row remains.
// Mutations that change stored data invalidate the injected cache.
type NoteRepository struct {
	db    *sql.DB
	cache cache.Invalidator
	now   func() time.Time
}

func NewNoteRepository(db *sql.DB, inv cache.Invalidator) *NoteRepository {
	return &NoteRepository{
		db:    db,
		cache: inv,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *NoteRepository) invalidate() {
	if r.cache != nil {
		r.cache.ClearAll()
	}
}

func scanNote(row interface{ Scan(...interface{}) error }) (*Note, error) {
	var note Note
	err := row.Scan(&note.ID, &note.Title, &note.Content, &note.IsDeleted,
		&note.CreatedBy, &note.UpdatedBy, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Create inserts a new note after normalizing both fields, or returns the
// existing active note whose normalized title and content already match.
// The replay path touches nothing: no new row, no timestamps, no cache
// invalidation. The returned bool is true when a row was inserted.
func (r *NoteRepository) Create(title, content string) (*Note, bool, error) {
	title = textutil.Normalize(title)
	content = textutil.Normalize(content)

	if title == "" {
		return nil, false, interrors.ErrEmptyTitle
	}
	if content == "" {
		return nil, false, interrors.ErrEmptyContent
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanNote(tx.QueryRow(
		"SELECT "+noteColumns+" FROM notes WHERE title = ? AND content = ? AND is_deleted = 0 LIMIT 1",
		title, content,
	))
	if err == nil {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to check for existing note: %w", err)
	}

	now := r.now()
	note := &Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedBy: constants.SystemUser,
		UpdatedBy: constants.SystemUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.Exec(
		"INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, 0, ?, ?, ?, ?)",
		note.ID, note.Title, note.Content, note.CreatedBy, note.UpdatedBy,
		note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	r.invalidate()
	return note, true, nil
}

// GetByID returns the active note with the given id.
func (r *NoteRepository) GetByID(id string) (*Note, error) {
	note, err := scanNote(r.db.QueryRow(
		"SELECT "+noteColumns+" FROM notes WHERE id = ? AND is_deleted = 0",
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interrors.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

// List returns one page of active notes plus the total active count. Page
// is 1-indexed and limit must be within (0, MaxPageSize]. Any order value
// other than "asc" sorts descending.
func (r *NoteRepository) List(page, limit int, sortBy, order string) ([]*Note, int, error) {
	if page < 1 {
		return nil, 0, interrors.ErrInvalidPage
	}
	if limit < 1 || limit > constants.MaxPageSize {
		return nil, 0, interrors.ErrInvalidLimit
	}

	column, ok := sortColumns[sortBy]
	if !ok {
		return nil, 0, interrors.ErrInvalidSortField
	}

	direction := "DESC"
	if order == "asc" {
		direction = "ASC"
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM notes WHERE is_deleted = 0").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM notes WHERE is_deleted = 0 ORDER BY %s %s, id LIMIT ? OFFSET ?",
		noteColumns, column, direction,
	)
	rows, err := r.db.Query(query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return notes, total, nil
}

// Update applies the provided fields to an active note. A nil field is left
// alone; a provided field is normalized and compared to the stored value.
// When nothing actually changes the stored row is untouched: no timestamp
// refresh, no cache invalidation, and the returned bool is false.
func (r *NoteRepository) Update(id string, title, content *string) (*Note, bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	note, err := scanNote(tx.QueryRow(
		"SELECT "+noteColumns+" FROM notes WHERE id = ? AND is_deleted = 0",
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, interrors.ErrNoteNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get note: %w", err)
	}

	changed := false

	if title != nil {
		t := textutil.Normalize(*title)
		if t == "" {
			return nil, false, interrors.ErrEmptyTitle
		}
		if t != note.Title {
			note.Title = t
			changed = true
		}
	}

	if content != nil {
		c := textutil.Normalize(*content)
		if c == "" {
			return nil, false, interrors.ErrEmptyContent
		}
		if c != note.Content {
			note.Content = c
			changed = true
		}
	}

	if !changed {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return note, false, nil
	}

	note.UpdatedAt = r.now()
	note.UpdatedBy = constants.SystemUser

	_, err = tx.Exec(
		"UPDATE notes SET title = ?, content = ?, updated_by = ?, updated_at = ? WHERE id = ?",
		note.Title, note.Content, note.UpdatedBy, note.UpdatedAt, note.ID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	r.invalidate()
	return note, true, nil
}

// SoftDelete tombstones a note. Deleting an already-deleted note is a
// successful no-op that leaves the row and the cache alone; the returned
// bool is false in that case. Unknown ids fail with ErrNoteNotFound.
func (r *NoteRepository) SoftDelete(id string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var isDeleted bool
	err = tx.QueryRow("SELECT is_deleted FROM notes WHERE id = ?", id).Scan(&isDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, interrors.ErrNoteNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to get note: %w", err)
	}

	if isDeleted {
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit: %w", err)
		}
		return false, nil
	}

	_, err = tx.Exec(
		"UPDATE notes SET is_deleted = 1, updated_by = ?, updated_at = ? WHERE id = ?",
		constants.SystemUser, r.now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	r.invalidate()
	return true, nil
}

// ListActive returns every active note in creation order. The fixed
// (created_at, id) order gives search a deterministic tie-break.
func (r *NoteRepository) ListActive() ([]*Note, error) {
	rows, err := r.db.Query(
		"SELECT " + noteColumns + " FROM notes WHERE is_deleted = 0 ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return notes, nil
}

func (r *NoteRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM notes WHERE is_deleted = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// CountActiveCreatedSince counts active notes created at or after t.
func (r *NoteRepository) CountActiveCreatedSince(t time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM notes WHERE is_deleted = 0 AND created_at >= ?", t,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// LastUpdatedNoteID returns the id of the most recently touched note,
// deleted or not. An empty store fails with ErrNoteNotFound.
func (r *NoteRepository) LastUpdatedNoteID() (string, error) {
	var id string
	err := r.db.QueryRow(
		"SELECT id FROM notes ORDER BY updated_at DESC, id LIMIT 1",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", interrors.ErrNoteNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last updated note: %w", err)
	}
	return id, nil
}
