package db

import (
	"context"

	"relnotify/internal/models"
)

func (s *Store) InsertHistory(ctx context.Context, rec *models.HistoryRecord) error {

	return s.Pool.QueryRow(ctx,
		`INSERT INTO email_history (release_note_id, email_count, status, error_message, kind, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.ReleaseNoteID,
		rec.EmailCount,
		rec.Status,
		rec.ErrorMessage,
		rec.Kind,
		rec.SentAt,
	).Scan(&rec.ID)
}

func (s *Store) ListHistory(ctx context.Context) ([]*models.HistoryRecord, error) {

	rows, err := s.Pool.Query(ctx,
		`SELECT id, release_note_id, email_count, status, error_message, kind, sent_at
		 FROM email_history ORDER BY sent_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		err := rows.Scan(
			&rec.ID,
			&rec.ReleaseNoteID,
			&rec.EmailCount,
			&rec.Status,
			&rec.ErrorMessage,
			&rec.Kind,
			&rec.SentAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// PruneHistory deletes everything but the newest keep records.
func (s *Store) PruneHistory(ctx context.Context, keep int) error {

	_, err := s.Pool.Exec(ctx,
		`DELETE FROM email_history
		 WHERE id NOT IN (
		     SELECT id FROM email_history
		     ORDER BY sent_at DESC, id DESC
		     LIMIT $1
		 )`,
		keep,
	)

	return err
}
