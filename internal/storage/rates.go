package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// SaveRate records q as the quote for its date, replacing an earlier quote
// from the same day.
func (r *SQLiteRepository) SaveRate(ctx context.Context, q core.RateQuote) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO exchange_rates (date, official, card, blue, source, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			official = excluded.official, card = excluded.card, blue = excluded.blue,
			source = excluded.source, fetched_at = excluded.fetched_at`,
		q.Date.String(), q.Official.String(), q.Card.String(), q.Blue.String(), q.Source,
		q.FetchedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save rate: %w", err)
	}
	return nil
}

func scanRate(s rowScanner) (core.RateQuote, error) {
	var (
		q         core.RateQuote
		date      string
		fetchedAt string
	)
	if err := s.Scan(&date, &q.Official, &q.Card, &q.Blue, &q.Source, &fetchedAt); err != nil {
		return core.RateQuote{}, err
	}
	var err error
	if q.Date, err = parseDate(date); err != nil {
		return core.RateQuote{}, err
	}
	q.FetchedAt = parseTime(fetchedAt)
	return q, nil
}

// LatestRate returns the most recent stored quote.
func (r *SQLiteRepository) LatestRate(ctx context.Context) (core.RateQuote, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT date, official, card, blue, source, fetched_at FROM exchange_rates ORDER BY date DESC LIMIT 1`)
	q, err := scanRate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RateQuote{}, fmt.Errorf("latest rate: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.RateQuote{}, fmt.Errorf("latest rate: %w", err)
	}
	return q, nil
}

// RateHistory returns the quotes dated on or after since, oldest first.
func (r *SQLiteRepository) RateHistory(ctx context.Context, since core.Date) ([]core.RateQuote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, official, card, blue, source, fetched_at FROM exchange_rates WHERE date >= ? ORDER BY date`,
		since.String())
	if err != nil {
		return nil, fmt.Errorf("rate history: %w", err)
	}
	defer rows.Close()

	var out []core.RateQuote
	for rows.Next() {
		q, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
