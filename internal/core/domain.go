package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Local   Currency = "local"
	Foreign Currency = "foreign"
)

const (
	Cash          PaymentMethod = "cash"
	DebitCard     PaymentMethod = "debit_card"
	CreditCard    PaymentMethod = "credit_card"
	BankTransfer  PaymentMethod = "bank_transfer"
	DigitalWallet PaymentMethod = "digital_wallet"
	OtherMethod   PaymentMethod = "other"
)

// MaxDescriptionLength bounds free-text descriptions accepted by the ledger.
const MaxDescriptionLength = 200

type (
	TransactionType string
	Currency        string
	PaymentMethod   string

	// Date is a calendar date. The time part is always UTC midnight.
	Date struct {
		time.Time
	}

	// Transaction is one ledger record. AccountID is nil when the
	// transaction is not linked to an account; PaymentMethod is empty when
	// none was recorded.
	Transaction struct {
		ID                int64
		Date              Date
		Type              TransactionType
		Category          string
		Subcategory       string
		Description       string
		Amount            decimal.Decimal
		Currency          Currency
		ExchangeRate      decimal.Decimal
		PaymentMethod     PaymentMethod
		FixedExpense      bool
		InstallmentsTotal int
		InstallmentsPaid  int
		AccountID         *int64
		CreatedAt         time.Time
	}
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidRate         = errors.New("invalid exchange rate")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrInvalidInstallments = errors.New("invalid installments")
	ErrMissingCategory     = errors.New("category is required")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the calendar month the date falls in.
func (d Date) Month() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// AddMonths moves the date n calendar months, clamping the day to the last
// valid day of the target month: Jan 31 + 1 month is Feb 28 (or 29).
func (d Date) AddMonths(n int) Date {
	target := d.Month().AddMonths(n)
	day := d.Day()
	if last := target.Days(); day > last {
		day = last
	}
	return NewDate(target.Year, int(target.Month), day)
}

// AddDays moves the date n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (c Currency) Valid() bool {
	return c == Local || c == Foreign
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, DebitCard, CreditCard, BankTransfer, DigitalWallet, OtherMethod:
		return true
	}
	return false
}

// AmountLocal is the amount converted to the local currency.
func (t Transaction) AmountLocal() decimal.Decimal {
	if t.Currency != Foreign {
		return t.Amount
	}
	return t.Amount.Mul(t.ExchangeRate)
}

// IsInstallmentPurchase reports whether the transaction is a credit card
// expense split across more than one installment.
func (t Transaction) IsInstallmentPurchase() bool {
	return t.Type == Expense && t.PaymentMethod == CreditCard && t.InstallmentsTotal > 1
}

// RemainingInstallments is the number of installments not yet paid.
func (t Transaction) RemainingInstallments() int {
	if t.InstallmentsPaid >= t.InstallmentsTotal {
		return 0
	}
	return t.InstallmentsTotal - t.InstallmentsPaid
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if t.Category == "" {
		return ErrMissingCategory
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Currency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency)
	}
	if !t.ExchangeRate.IsPositive() {
		return ErrInvalidRate
	}
	if t.Currency == Local && !t.ExchangeRate.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: local currency requires rate 1, got %s", ErrInvalidRate, t.ExchangeRate)
	}
	if t.PaymentMethod != "" && !t.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPayment, t.PaymentMethod)
	}
	if t.InstallmentsTotal < 1 {
		return fmt.Errorf("%w: total %d", ErrInvalidInstallments, t.InstallmentsTotal)
	}
	if t.InstallmentsPaid < 0 || t.InstallmentsPaid > t.InstallmentsTotal {
		return fmt.Errorf("%w: paid %d of %d", ErrInvalidInstallments, t.InstallmentsPaid, t.InstallmentsTotal)
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Normalize fills defaults a caller may leave out: a rate of 1 for local
// amounts and a single installment.
func (t Transaction) Normalize() Transaction {
	if t.Currency == "" {
		t.Currency = Local
	}
	if t.Currency == Local && t.ExchangeRate.IsZero() {
		t.ExchangeRate = decimal.NewFromInt(1)
	}
	if t.InstallmentsTotal == 0 {
		t.InstallmentsTotal = 1
	}
	t.Category = strings.TrimSpace(t.Category)
	t.Subcategory = strings.TrimSpace(t.Subcategory)
	t.Description = strings.TrimSpace(t.Description)
	return t
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
