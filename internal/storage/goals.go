package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

const goalColumns = `id, name, description, type, target_amount, current_amount, currency,
	start_date, target_date, category, status, created_at, updated_at`

func scanGoal(s rowScanner) (core.Goal, error) {
	var (
		g                     core.Goal
		typ, currency, status string
		start, target         string
		createdAt, updatedAt  string
	)
	err := s.Scan(&g.ID, &g.Name, &g.Description, &typ, &g.TargetAmount, &g.CurrentAmount,
		&currency, &start, &target, &g.Category, &status, &createdAt, &updatedAt)
	if err != nil {
		return core.Goal{}, err
	}
	if g.StartDate, err = parseDate(start); err != nil {
		return core.Goal{}, err
	}
	if g.TargetDate, err = parseDate(target); err != nil {
		return core.Goal{}, err
	}
	g.Type = core.GoalType(typ)
	g.Currency = core.Currency(currency)
	g.Status = core.GoalStatus(status)
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return g, nil
}

// SaveGoal inserts g when its ID is zero and replaces it otherwise. The
// status is always recomputed from the amounts.
func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, fmt.Errorf("validate goal: %w", err)
	}
	g = g.WithProgress(g.CurrentAmount)
	now := r.timestamp()

	if g.ID == 0 {
		res, err := r.db.ExecContext(ctx, `INSERT INTO goals
			(name, description, type, target_amount, current_amount, currency, start_date,
			 target_date, category, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.Name, g.Description, string(g.Type), g.TargetAmount.String(), g.CurrentAmount.String(),
			string(g.Currency), g.StartDate.String(), g.TargetDate.String(), g.Category,
			string(g.Status), now, now)
		if err != nil {
			return core.Goal{}, fmt.Errorf("insert goal: %w", err)
		}
		if g.ID, err = res.LastInsertId(); err != nil {
			return core.Goal{}, fmt.Errorf("read goal id: %w", err)
		}
		g.CreatedAt = parseTime(now)
	} else {
		res, err := r.db.ExecContext(ctx, `UPDATE goals SET
			name = ?, description = ?, type = ?, target_amount = ?, current_amount = ?, currency = ?,
			start_date = ?, target_date = ?, category = ?, status = ?, updated_at = ?
			WHERE id = ?`,
			g.Name, g.Description, string(g.Type), g.TargetAmount.String(), g.CurrentAmount.String(),
			string(g.Currency), g.StartDate.String(), g.TargetDate.String(), g.Category,
			string(g.Status), now, g.ID)
		if err != nil {
			return core.Goal{}, fmt.Errorf("update goal: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.Goal{}, fmt.Errorf("goal %d: %w", g.ID, core.ErrNotFound)
		}
	}
	g.UpdatedAt = parseTime(now)
	return g, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id int64) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY target_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %d: %w", id, core.ErrNotFound)
	}
	return nil
}
