package core

import "sort"

// Ledger is a read-only snapshot of one user's transactions.
type Ledger []Transaction

// Filter selects ledger rows. Zero-valued fields do not constrain.
type Filter struct {
	From          Date
	To            Date
	Type          TransactionType
	Category      string
	Subcategory   string
	PaymentMethod PaymentMethod
	Currency      Currency
	Fixed         *bool
}

// Match reports whether t satisfies every set criterion.
func (f Filter) Match(t Transaction) bool {
	if !f.From.IsZero() && t.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To.Time) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Subcategory != "" && t.Subcategory != f.Subcategory {
		return false
	}
	if f.PaymentMethod != "" && t.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.Currency != "" && t.Currency != f.Currency {
		return false
	}
	if f.Fixed != nil && t.FixedExpense != *f.Fixed {
		return false
	}
	return true
}

// Filter returns the rows matching f in their original order.
func (l Ledger) Filter(f Filter) Ledger {
	out := make(Ledger, 0, len(l))
	for _, t := range l {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// OfType returns the rows of the given type.
func (l Ledger) OfType(tt TransactionType) Ledger {
	return l.Filter(Filter{Type: tt})
}

// Months returns the distinct calendar months present, oldest first.
func (l Ledger) Months() []Month {
	seen := make(map[Month]struct{})
	var out []Month
	for _, t := range l {
		m := t.Date.Month()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SortedByDate returns a copy ordered by date, then id.
func (l Ledger) SortedByDate() Ledger {
	out := append(Ledger(nil), l...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
