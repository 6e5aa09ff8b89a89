// Package memory is an in-process Store used by tests, the CLI and the
// default backend. Data lives only as long as the process.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	defaultExpenseCategories = []string{
		"Housing", "Food", "Transport", "Utilities", "Health", "Education", "Entertainment",
		"Clothing", "Travel", "Technology", "Gifts", "Taxes", "Insurance", "Other",
	}
	defaultIncomeCategories = []string{
		"Salary", "Freelance", "Investments", "Gifts/Loans", "Refunds", "Other",
	}
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	cats     map[core.TransactionType][]string
	txs      []core.Transaction
	accounts []core.Account
	goals    []core.Goal
	rates    map[string]core.RateQuote
	nextTx   int64
	nextAcc  int64
	nextGoal int64
}

// New creates a store with the given category vocabularies and the default
// accounts.
func New(expenseCats, incomeCats []string) *Store {
	s := &Store{
		now: time.Now,
		cats: map[core.TransactionType][]string{
			core.Expense: dedupe(expenseCats),
			core.Income:  dedupe(incomeCats),
		},
		rates: map[string]core.RateQuote{},
	}
	for _, a := range core.DefaultAccounts() {
		s.nextAcc++
		a.ID = s.nextAcc
		a.CreatedAt, a.UpdatedAt = s.now(), s.now()
		s.accounts = append(s.accounts, a)
	}
	return s
}

// NewFromFiles seeds the category vocabularies from seed_categories.txt
// (expenses) and seed_income_categories.txt under base, falling back to the
// built-in lists when a file is missing or empty.
func NewFromFiles(base string) *Store {
	exp := readLines(filepath.Join(base, "seed_categories.txt"))
	inc := readLines(filepath.Join(base, "seed_income_categories.txt"))
	if len(exp) == 0 {
		exp = defaultExpenseCategories
	}
	if len(inc) == 0 {
		inc = defaultIncomeCategories
	}
	return New(exp, inc)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// Categories returns the seeded vocabulary followed by any other category
// already used in the ledger.
func (s *Store) Categories(_ context.Context, tt core.TransactionType) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.cats[tt]...)
	for _, t := range s.txs {
		if t.Type == tt {
			out = append(out, t.Category)
		}
	}
	return dedupe(out), nil
}

func (s *Store) accountIndex(id int64) int {
	for i, a := range s.accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) txIndex(id int64) int {
	for i, t := range s.txs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// applyDelta adjusts an account balance; callers hold the lock. Accounts
// are checked before any mutation so a failed call leaves no partial write.
func (s *Store) applyDelta(id *int64, delta decimal.Decimal) {
	if id == nil {
		return
	}
	if i := s.accountIndex(*id); i >= 0 {
		s.accounts[i].Balance = s.accounts[i].Balance.Add(delta)
		s.accounts[i].UpdatedAt = s.now()
	}
}

func (s *Store) checkAccount(id *int64) error {
	if id != nil && s.accountIndex(*id) < 0 {
		return fmt.Errorf("account %d: %w", *id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAccount(t.AccountID); err != nil {
		return core.Transaction{}, err
	}
	s.nextTx++
	t.ID = s.nextTx
	t.CreatedAt = s.now()
	s.txs = append(s.txs, t)
	s.applyDelta(t.AccountID, core.BalanceDelta(t))
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(t.ID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
	}
	if err := s.checkAccount(t.AccountID); err != nil {
		return core.Transaction{}, err
	}
	old := s.txs[i]
	t.CreatedAt = old.CreatedAt
	s.applyDelta(old.AccountID, core.BalanceDelta(old).Neg())
	s.applyDelta(t.AccountID, core.BalanceDelta(t))
	s.txs[i] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	old := s.txs[i]
	s.applyDelta(old.AccountID, core.BalanceDelta(old).Neg())
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	return old, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.txIndex(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, f core.Filter) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Ledger(s.txs).Filter(f).SortedByDate(), nil
}

func (s *Store) Ledger(ctx context.Context) (core.Ledger, error) {
	return s.ListTransactions(ctx, core.Filter{})
}

// Import appends already-validated transactions, e.g. rows read from a
// spreadsheet. Account links are dropped since imported rows carry none.
func (s *Store) Import(ctx context.Context, ledger core.Ledger) (int, error) {
	n := 0
	for _, t := range ledger {
		t.AccountID = nil
		if _, err := s.CreateTransaction(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if a.Currency == "" {
		a.Currency = core.Local
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("validate account: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Name == a.Name {
			return core.Account{}, fmt.Errorf("%w: %q", core.ErrDuplicateAccount, a.Name)
		}
	}
	s.nextAcc++
	a.ID = s.nextAcc
	a.CreatedAt, a.UpdatedAt = s.now(), s.now()
	s.accounts = append(s.accounts, a)
	return a, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.accountIndex(id); i >= 0 {
		return s.accounts[i], nil
	}
	return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListAccounts(context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.accountIndex(id)
	if i < 0 {
		return fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	for j := range s.txs {
		if s.txs[j].AccountID != nil && *s.txs[j].AccountID == id {
			s.txs[j].AccountID = nil
		}
	}
	s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
	return nil
}

func (s *Store) SaveGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, fmt.Errorf("validate goal: %w", err)
	}
	g = g.WithProgress(g.CurrentAmount)
	s.mu.Lock()
	defer s.mu.Unlock()
	g.UpdatedAt = s.now()
	if g.ID == 0 {
		s.nextGoal++
		g.ID = s.nextGoal
		g.CreatedAt = g.UpdatedAt
		s.goals = append(s.goals, g)
		return g, nil
	}
	for i := range s.goals {
		if s.goals[i].ID == g.ID {
			g.CreatedAt = s.goals[i].CreatedAt
			s.goals[i] = g
			return g, nil
		}
	}
	return core.Goal{}, fmt.Errorf("goal %d: %w", g.ID, core.ErrNotFound)
}

func (s *Store) GetGoal(_ context.Context, id int64) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return core.Goal{}, fmt.Errorf("goal %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListGoals(context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Goal(nil), s.goals...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate.Time) })
	return out, nil
}

func (s *Store) DeleteGoal(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.goals {
		if g.ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("goal %d: %w", id, core.ErrNotFound)
}

func (s *Store) SaveRate(_ context.Context, q core.RateQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[q.Date.String()] = q
	return nil
}

func (s *Store) sortedRates() []core.RateQuote {
	out := make([]core.RateQuote, 0, len(s.rates))
	for _, q := range s.rates {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}

func (s *Store) LatestRate(context.Context) (core.RateQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedRates()
	if len(all) == 0 {
		return core.RateQuote{}, fmt.Errorf("latest rate: %w", core.ErrNotFound)
	}
	return all[len(all)-1], nil
}

func (s *Store) RateHistory(_ context.Context, since core.Date) ([]core.RateQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RateQuote
	for _, q := range s.sortedRates() {
		if !q.Date.Before(since.Time) {
			out = append(out, q)
		}
	}
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe trims, drops blanks and keeps the first occurrence of each value.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
