package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var _ sheets.Store = (*Store)(nil)

func TestCategoriesSeedAndUsage(t *testing.T) {
	s := New([]string{"Food", "Rent", "Food"}, []string{"Salary"})
	ctx := context.Background()
	if _, err := s.CreateTransaction(ctx, core.Transaction{
		Date: core.NewDate(2024, 1, 1), Type: core.Expense, Category: "Pets", Amount: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	cats, err := s.Categories(ctx, core.Expense)
	if err != nil || len(cats) != 3 || cats[2] != "Pets" {
		t.Fatalf("unexpected categories: %v err=%v", cats, err)
	}
	inc, _ := s.Categories(ctx, core.Income)
	if len(inc) != 1 || inc[0] != "Salary" {
		t.Fatalf("unexpected income categories: %v", inc)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.Categories(context.Background(), core.Expense)
	if len(cats) == 0 {
		t.Fatalf("expected defaults when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_categories.txt", "# header\nA\nB\nA\n\n")
	mustWrite("seed_income_categories.txt", "# header\nX\nX\nY\n\n")

	s = NewFromFiles(dir)
	cats, _ = s.Categories(context.Background(), core.Expense)
	if len(cats) != 2 || cats[0] != "A" || cats[1] != "B" {
		t.Fatalf("unexpected cats: %v", cats)
	}
	inc, _ := s.Categories(context.Background(), core.Income)
	if len(inc) != 2 || inc[0] != "X" || inc[1] != "Y" {
		t.Fatalf("unexpected income cats: %v", inc)
	}
}

func TestBalanceFollowsTransactions(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	cash, bank := int64(1), int64(2)

	tx, err := s.CreateTransaction(ctx, core.Transaction{
		Date: core.NewDate(2024, 1, 1), Type: core.Expense, Category: "Food",
		Amount: decimal.NewFromInt(30), PaymentMethod: core.Cash, AccountID: &cash,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tx.AccountID = &bank
	tx.Amount = decimal.NewFromInt(50)
	if _, err := s.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	a, _ := s.GetAccount(ctx, cash)
	b, _ := s.GetAccount(ctx, bank)
	if !a.Balance.IsZero() || !b.Balance.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("balances after move: cash=%s bank=%s", a.Balance, b.Balance)
	}
	if _, err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	b, _ = s.GetAccount(ctx, bank)
	if !b.Balance.IsZero() {
		t.Fatalf("bank balance after delete: %s", b.Balance)
	}

	missing := int64(42)
	_, err = s.CreateTransaction(ctx, core.Transaction{
		Date: core.NewDate(2024, 1, 1), Type: core.Income, Category: "Salary",
		Amount: decimal.NewFromInt(1), AccountID: &missing,
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if l, _ := s.Ledger(ctx); len(l) != 0 {
		t.Fatalf("failed create must not store a row")
	}
}

func TestImportAndRates(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	acc := int64(1)
	n, err := s.Import(ctx, core.Ledger{
		{Date: core.NewDate(2024, 2, 1), Type: core.Expense, Category: "Food", Amount: decimal.NewFromInt(3), AccountID: &acc},
		{Date: core.NewDate(2024, 1, 1), Type: core.Income, Category: "Salary", Amount: decimal.NewFromInt(9)},
	})
	if err != nil || n != 2 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
	l, _ := s.Ledger(ctx)
	if l[0].Category != "Salary" || l[1].AccountID != nil {
		t.Fatalf("import should sort and unlink: %+v", l)
	}

	if _, err := s.LatestRate(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s.SaveRate(ctx, core.RateQuote{Date: core.NewDate(2024, 1, 2), Official: decimal.NewFromInt(2)})
	s.SaveRate(ctx, core.RateQuote{Date: core.NewDate(2024, 1, 1), Official: decimal.NewFromInt(1)})
	q, _ := s.LatestRate(ctx)
	if !q.Official.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("latest should be newest date, got %s", q.Official)
	}
	h, _ := s.RateHistory(ctx, core.NewDate(2024, 1, 2))
	if len(h) != 1 {
		t.Fatalf("expected 1 quote since Jan 2, got %d", len(h))
	}
}
