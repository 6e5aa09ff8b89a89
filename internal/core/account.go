package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountBank          AccountType = "bank"
	AccountCash          AccountType = "cash"
	AccountCreditCard    AccountType = "credit_card"
	AccountInvestment    AccountType = "investment"
	AccountSavings       AccountType = "savings"
	AccountDigitalWallet AccountType = "digital_wallet"
	AccountOther         AccountType = "other"
)

var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrMissingName        = errors.New("name is required")
	ErrDuplicateAccount   = errors.New("account name already exists")
)

type AccountType string

// Account holds a running balance adjusted by the transactions that
// reference it.
type Account struct {
	ID        int64
	Name      string
	Type      AccountType
	Balance   decimal.Decimal
	Currency  Currency
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountCreditCard, AccountInvestment,
		AccountSavings, AccountDigitalWallet, AccountOther:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingName
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	if !a.Currency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, a.Currency)
	}
	return nil
}

// BalanceDelta is the signed effect of t on its account: income adds the
// amount, an expense subtracts it.
func BalanceDelta(t Transaction) decimal.Decimal {
	if t.Type == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

// DefaultAccounts are created on an empty registry.
func DefaultAccounts() []Account {
	return []Account{
		{Name: "Cash", Type: AccountCash, Balance: decimal.Zero, Currency: Local},
		{Name: "Main bank account", Type: AccountBank, Balance: decimal.Zero, Currency: Local},
	}
}
