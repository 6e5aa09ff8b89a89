package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// ErrDuplicateAccount is returned when an account name is already taken.
var ErrDuplicateAccount = core.ErrDuplicateAccount

const accountColumns = `id, name, type, balance, currency, created_at, updated_at`

func scanAccount(s rowScanner) (core.Account, error) {
	var (
		a                    core.Account
		typ, currency        string
		createdAt, updatedAt string
	)
	if err := s.Scan(&a.ID, &a.Name, &typ, &a.Balance, &currency, &createdAt, &updatedAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.Currency = core.Currency(currency)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.Currency == "" {
		a.Currency = core.Local
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("validate account: %w", err)
	}
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, type, balance, currency, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, string(a.Type), a.Balance.String(), string(a.Currency), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.Account{}, fmt.Errorf("%w: %q", ErrDuplicateAccount, a.Name)
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return core.Account{}, fmt.Errorf("read account id: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = parseTime(now), parseTime(now)

	slog.InfoContext(ctx, "Account created", applog.FieldComponent, applog.ComponentStorage, "id", a.ID, "name", a.Name, "type", a.Type)
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAccount removes the account and unlinks its transactions, which stay
// in the ledger.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET account_id = NULL WHERE account_id = ?`, id); err != nil {
			return fmt.Errorf("unlink transactions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("account %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}
