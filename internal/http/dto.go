package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// amountField accepts a JSON string ("12,50") or number (12.5) and keeps
// the literal text for core.ParseAmount.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = amountField(n.String())
	return nil
}

type transactionRequest struct {
	Date              core.Date   `json:"date"`
	Type              string      `json:"type"`
	Category          string      `json:"category"`
	Subcategory       string      `json:"subcategory"`
	Description       string      `json:"description"`
	Amount            amountField `json:"amount"`
	Currency          string      `json:"currency"`
	ExchangeRate      amountField `json:"exchange_rate"`
	PaymentMethod     string      `json:"payment_method"`
	FixedExpense      bool        `json:"fixed_expense"`
	InstallmentsTotal int         `json:"installments_total"`
	InstallmentsPaid  int         `json:"installments_paid"`
	AccountID         *int64      `json:"account_id"`
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", req.Amount, err)
	}
	rate, err := core.ParseRate(string(req.ExchangeRate))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("exchange rate %q: %w", req.ExchangeRate, err)
	}
	t := core.Transaction{
		Date:              req.Date,
		Type:              core.TransactionType(sanitizeInput(req.Type)),
		Category:          sanitizeInput(req.Category),
		Subcategory:       sanitizeInput(req.Subcategory),
		Description:       sanitizeInput(req.Description),
		Amount:            amount,
		Currency:          core.Currency(sanitizeInput(req.Currency)),
		ExchangeRate:      rate,
		PaymentMethod:     core.PaymentMethod(sanitizeInput(req.PaymentMethod)),
		FixedExpense:      req.FixedExpense,
		InstallmentsTotal: req.InstallmentsTotal,
		InstallmentsPaid:  req.InstallmentsPaid,
		AccountID:         req.AccountID,
	}
	return t.Normalize(), nil
}

type transactionResponse struct {
	ID                int64           `json:"id"`
	Date              core.Date       `json:"date"`
	Type              string          `json:"type"`
	Category          string          `json:"category"`
	Subcategory       string          `json:"subcategory,omitempty"`
	Description       string          `json:"description,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	AmountLocal       decimal.Decimal `json:"amount_local"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	FixedExpense      bool            `json:"fixed_expense"`
	InstallmentsTotal int             `json:"installments_total"`
	InstallmentsPaid  int             `json:"installments_paid"`
	AccountID         *int64          `json:"account_id,omitempty"`
	CreatedAt         *time.Time      `json:"created_at,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                t.ID,
		Date:              t.Date,
		Type:              string(t.Type),
		Category:          t.Category,
		Subcategory:       t.Subcategory,
		Description:       t.Description,
		Amount:            t.Amount,
		Currency:          string(t.Currency),
		ExchangeRate:      t.ExchangeRate,
		AmountLocal:       t.AmountLocal(),
		PaymentMethod:     string(t.PaymentMethod),
		FixedExpense:      t.FixedExpense,
		InstallmentsTotal: t.InstallmentsTotal,
		InstallmentsPaid:  t.InstallmentsPaid,
		AccountID:         t.AccountID,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func toTransactionResponses(l core.Ledger) []transactionResponse {
	out := make([]transactionResponse, 0, len(l))
	for _, t := range l {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

type accountRequest struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Balance  amountField `json:"balance"`
	Currency string      `json:"currency"`
}

func (req accountRequest) toAccount() (core.Account, error) {
	balance := decimal.Zero
	if req.Balance != "" {
		d, err := decimal.NewFromString(string(req.Balance))
		if err != nil {
			return core.Account{}, fmt.Errorf("balance %q: %w", req.Balance, core.ErrInvalidAmount)
		}
		balance = d
	}
	a := core.Account{
		Name:     sanitizeInput(req.Name),
		Type:     core.AccountType(sanitizeInput(req.Type)),
		Balance:  balance,
		Currency: core.Currency(sanitizeInput(req.Currency)),
	}
	if a.Currency == "" {
		a.Currency = core.Local
	}
	return a, a.Validate()
}

type accountResponse struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Name:     a.Name,
		Type:     string(a.Type),
		Balance:  a.Balance,
		Currency: string(a.Currency),
	}
}

type goalRequest struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Type          string      `json:"type"`
	TargetAmount  amountField `json:"target_amount"`
	CurrentAmount amountField `json:"current_amount"`
	Currency      string      `json:"currency"`
	StartDate     core.Date   `json:"start_date"`
	TargetDate    core.Date   `json:"target_date"`
	Category      string      `json:"category"`
}

func (req goalRequest) toGoal() (core.Goal, error) {
	target, err := core.ParseAmount(string(req.TargetAmount))
	if err != nil {
		return core.Goal{}, fmt.Errorf("target amount %q: %w", req.TargetAmount, err)
	}
	current, err := parseNonNegative(string(req.CurrentAmount))
	if err != nil {
		return core.Goal{}, fmt.Errorf("current amount %q: %w", req.CurrentAmount, err)
	}
	goalType := core.GoalType(sanitizeInput(req.Type))
	if goalType == "" {
		goalType = core.GoalSavings
	}
	return core.Goal{
		Name:          sanitizeInput(req.Name),
		Description:   sanitizeInput(req.Description),
		Type:          goalType,
		TargetAmount:  target,
		CurrentAmount: current,
		Currency:      core.Currency(sanitizeInput(req.Currency)),
		StartDate:     req.StartDate,
		TargetDate:    req.TargetDate,
		Category:      sanitizeInput(req.Category),
	}, nil
}

type progressRequest struct {
	CurrentAmount amountField `json:"current_amount"`
}

// parseNonNegative accepts zero, unlike core.ParseAmount.
func parseNonNegative(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return d, nil
}

type goalResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Type          string          `json:"type"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Remaining     decimal.Decimal `json:"remaining"`
	Progress      float64         `json:"progress"`
	Currency      string          `json:"currency"`
	StartDate     core.Date       `json:"start_date"`
	TargetDate    core.Date       `json:"target_date"`
	Category      string          `json:"category,omitempty"`
	Status        string          `json:"status"`
}

func toGoalResponse(v services.GoalView) goalResponse {
	return goalResponse{
		ID:            v.ID,
		Name:          v.Name,
		Description:   v.Description,
		Type:          string(v.Type),
		TargetAmount:  v.TargetAmount,
		CurrentAmount: v.CurrentAmount,
		Remaining:     v.Remaining,
		Progress:      v.Progress,
		Currency:      string(v.Currency),
		StartDate:     v.StartDate,
		TargetDate:    v.TargetDate,
		Category:      v.Category,
		Status:        string(v.Status),
	}
}

type rateResponse struct {
	Date      core.Date       `json:"date"`
	Official  decimal.Decimal `json:"official"`
	Card      decimal.Decimal `json:"card"`
	Blue      decimal.Decimal `json:"blue"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func toRateResponse(q core.RateQuote) rateResponse {
	return rateResponse{
		Date:      q.Date,
		Official:  q.Official,
		Card:      q.Card,
		Blue:      q.Blue,
		Source:    q.Source,
		FetchedAt: q.FetchedAt,
	}
}

type suggestRequest struct {
	Description string `json:"description"`
}

type categoriesResponse struct {
	Type       string   `json:"type"`
	Categories []string `json:"categories"`
}
