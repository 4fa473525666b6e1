package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateSubscriber is returned when the address is already subscribed.
var ErrDuplicateSubscriber = errors.New("subscriber already exists")

// ErrSubscriberNotFound is returned on unsubscribe for an unknown address.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// ListSubscribers returns one batch window of addresses. Ordering by
// (created_at, id) keeps repeated offset queries stable between batches.
func (s *Store) ListSubscribers(ctx context.Context, offset, limit int) ([]string, error) {

	rows, err := s.Pool.Query(ctx,
		`SELECT email FROM subscribers
		 ORDER BY created_at ASC, id ASC
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (s *Store) CountSubscribers(ctx context.Context) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&count)
	return count, err
}

func (s *Store) AddSubscriber(ctx context.Context, email string) error {

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO subscribers (email) VALUES ($1)`,
		email,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateSubscriber
	}
	return err
}

func (s *Store) RemoveSubscriber(ctx context.Context, email string) error {

	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM subscribers WHERE email = $1`,
		email,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}
