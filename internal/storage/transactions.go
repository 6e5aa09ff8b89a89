package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const transactionColumns = `id, date, type, category, subcategory, description, amount, currency,
	exchange_rate, payment_method, fixed_expense, installments_total, installments_paid,
	account_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		date      string
		typ       string
		currency  string
		method    string
		fixed     int
		accountID sql.NullInt64
		createdAt string
	)
	err := s.Scan(&t.ID, &date, &typ, &t.Category, &t.Subcategory, &t.Description,
		&t.Amount, &currency, &t.ExchangeRate, &method, &fixed,
		&t.InstallmentsTotal, &t.InstallmentsPaid, &accountID, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Currency = core.Currency(currency)
	t.PaymentMethod = core.PaymentMethod(method)
	t.FixedExpense = fixed != 0
	if accountID.Valid {
		id := accountID.Int64
		t.AccountID = &id
	}
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// adjustBalance adds delta to the balance of account id within tx.
func adjustBalance(ctx context.Context, tx *sql.Tx, id *int64, delta decimal.Decimal, at string) error {
	if id == nil {
		return nil
	}
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, *id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %d: %w", *id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read account balance: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.Add(delta).String(), at, *id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}

func getTransaction(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, id int64) (core.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// CreateTransaction stores t and applies its balance delta to the linked
// account in the same SQL transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	now := r.timestamp()
	t.CreatedAt = parseTime(now)

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO transactions
			(date, type, category, subcategory, description, amount, currency, exchange_rate,
			 payment_method, fixed_expense, installments_total, installments_paid, account_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Date.String(), string(t.Type), t.Category, t.Subcategory, t.Description,
			t.Amount.String(), string(t.Currency), t.ExchangeRate.String(), string(t.PaymentMethod),
			boolInt(t.FixedExpense), t.InstallmentsTotal, t.InstallmentsPaid, nullableID(t.AccountID), now)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("read transaction id: %w", err)
		}
		return adjustBalance(ctx, tx, t.AccountID, core.BalanceDelta(t), now)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved",
		applog.FieldComponent, applog.ComponentStorage,
		"id", t.ID,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount.String(),
		"date", t.Date.String())
	return t, nil
}

// UpdateTransaction replaces the stored row. The previous balance effect is
// reversed on the old account before the new one is applied, so moving a
// transaction between accounts or changing its type never double-counts.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	now := r.timestamp()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		old, err := getTransaction(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		t.CreatedAt = old.CreatedAt
		if err := adjustBalance(ctx, tx, old.AccountID, core.BalanceDelta(old).Neg(), now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE transactions SET
			date = ?, type = ?, category = ?, subcategory = ?, description = ?, amount = ?,
			currency = ?, exchange_rate = ?, payment_method = ?, fixed_expense = ?,
			installments_total = ?, installments_paid = ?, account_id = ?
			WHERE id = ?`,
			t.Date.String(), string(t.Type), t.Category, t.Subcategory, t.Description,
			t.Amount.String(), string(t.Currency), t.ExchangeRate.String(), string(t.PaymentMethod),
			boolInt(t.FixedExpense), t.InstallmentsTotal, t.InstallmentsPaid, nullableID(t.AccountID), t.ID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return adjustBalance(ctx, tx, t.AccountID, core.BalanceDelta(t), now)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", applog.FieldComponent, applog.ComponentStorage, "id", t.ID)
	return t, nil
}

// DeleteTransaction removes the row and reverses its balance effect. The
// deleted transaction is returned so callers can publish it.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var old core.Transaction
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if old, err = getTransaction(ctx, tx, id); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, old.AccountID, core.BalanceDelta(old).Neg(), r.timestamp()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted", applog.FieldComponent, applog.ComponentStorage, "id", id)
	return old, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return getTransaction(ctx, r.db, id)
}

// ListTransactions returns the rows matching f ordered by date then id.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.Filter) (core.Ledger, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}
	if !f.From.IsZero() {
		add("date >= ?", f.From.String())
	}
	if !f.To.IsZero() {
		add("date <= ?", f.To.String())
	}
	if f.Type != "" {
		add("type = ?", string(f.Type))
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.Subcategory != "" {
		add("subcategory = ?", f.Subcategory)
	}
	if f.PaymentMethod != "" {
		add("payment_method = ?", string(f.PaymentMethod))
	}
	if f.Currency != "" {
		add("currency = ?", string(f.Currency))
	}
	if f.Fixed != nil {
		add("fixed_expense = ?", boolInt(*f.Fixed))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out core.Ledger
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Ledger returns the full transaction snapshot.
func (r *SQLiteRepository) Ledger(ctx context.Context) (core.Ledger, error) {
	return r.ListTransactions(ctx, core.Filter{})
}

// Categories returns the distinct categories in use per transaction type.
func (r *SQLiteRepository) Categories(ctx context.Context, tt core.TransactionType) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM transactions WHERE type = ? ORDER BY category`, string(tt))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
