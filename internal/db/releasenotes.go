package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"relnotify/internal/models"
)

func scanReleaseNote(row pgx.Row) (*models.ReleaseNote, error) {
	var n models.ReleaseNote
	err := row.Scan(
		&n.ID,
		&n.Version,
		&n.Title,
		&n.Description,
		&n.Type,
		&n.Tags,
		&n.Changes,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetReleaseNote returns nil when no note exists with the given id.
func (s *Store) GetReleaseNote(ctx context.Context, id int64) (*models.ReleaseNote, error) {

	row := s.Pool.QueryRow(ctx,
		`SELECT id, version, title, description, type, tags, changes, created_at
		 FROM release_notes WHERE id = $1`,
		id,
	)

	note, err := scanReleaseNote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return note, err
}

func (s *Store) ListReleaseNotes(ctx context.Context) ([]*models.ReleaseNote, error) {

	rows, err := s.Pool.Query(ctx,
		`SELECT id, version, title, description, type, tags, changes, created_at
		 FROM release_notes ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.ReleaseNote
	for rows.Next() {
		note, err := scanReleaseNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *Store) CreateReleaseNote(ctx context.Context, note *models.ReleaseNote) error {

	if note.Tags == nil {
		note.Tags = []string{}
	}
	if note.Changes == nil {
		note.Changes = []models.Change{}
	}

	return s.Pool.QueryRow(ctx,
		`INSERT INTO release_notes (version, title, description, type, tags, changes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		note.Version,
		note.Title,
		note.Description,
		note.Type,
		note.Tags,
		note.Changes,
	).Scan(&note.ID, &note.CreatedAt)
}
