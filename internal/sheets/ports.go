// Package sheets declares the outbound ports the services depend on. The
// memory and google subpackages and internal/storage provide adapters.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerReader returns a full snapshot of the ledger.
	LedgerReader interface {
		Ledger(ctx context.Context) (core.Ledger, error)
	}

	TransactionStore interface {
		LedgerReader
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// UpdateTransaction and DeleteTransaction must adjust the linked
		// account balances atomically with the row change.
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		ListTransactions(ctx context.Context, f core.Filter) (core.Ledger, error)
	}

	AccountRegistry interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		GetAccount(ctx context.Context, id int64) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
		DeleteAccount(ctx context.Context, id int64) error
	}

	GoalStore interface {
		SaveGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		GetGoal(ctx context.Context, id int64) (core.Goal, error)
		ListGoals(ctx context.Context) ([]core.Goal, error)
		DeleteGoal(ctx context.Context, id int64) error
	}

	// RateHistory stores fetched exchange rate quotes.
	RateHistory interface {
		SaveRate(ctx context.Context, q core.RateQuote) error
		LatestRate(ctx context.Context) (core.RateQuote, error)
		RateHistory(ctx context.Context, since core.Date) ([]core.RateQuote, error)
	}

	// TaxonomyReader lists the categories in use for a transaction type.
	TaxonomyReader interface {
		Categories(ctx context.Context, tt core.TransactionType) ([]string, error)
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		AccountRegistry
		GoalStore
		RateHistory
		TaxonomyReader
		Ping(ctx context.Context) error
		Close() error
	}
)
