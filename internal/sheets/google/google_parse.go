package google

import (
	"fmt"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// RowError reports a spreadsheet row that could not be imported. Row is the
// 1-based sheet row number.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

var requiredColumns = []string{"date", "type", "category", "amount"}

// parseLedger converts a values matrix whose first row is a header into
// validated transactions. Column order is free; optional columns default.
func parseLedger(values [][]interface{}) (core.Ledger, []RowError, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	headers := toStrings(values[0])
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}
	var missing []string
	for _, col := range requiredColumns {
		if indexOf(headers, col) == -1 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("unexpected ledger header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var (
		ledger core.Ledger
		errs   []RowError
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		field := func(name string) string { return strings.TrimSpace(safeGet(row, indexOf(headers, name))) }

		t, err := parseRow(field)
		if err == nil {
			t = t.Normalize()
			err = t.Validate()
		}
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err})
			continue
		}
		t.ID = int64(i)
		ledger = append(ledger, t)
	}
	return ledger, errs, nil
}

func parseRow(field func(string) string) (core.Transaction, error) {
	var (
		t   core.Transaction
		err error
	)
	if t.Date, err = core.ParseDate(field("date")); err != nil {
		return t, err
	}
	t.Type = core.TransactionType(strings.ToLower(field("type")))
	t.Category = field("category")
	t.Subcategory = field("subcategory")
	t.Description = field("description")
	if t.Amount, err = core.ParseAmount(field("amount")); err != nil {
		return t, err
	}
	t.Currency = core.Currency(strings.ToLower(field("currency")))
	if s := field("exchange_rate"); s != "" {
		if t.ExchangeRate, err = core.ParseRate(s); err != nil {
			return t, err
		}
	}
	t.PaymentMethod = core.PaymentMethod(strings.ToLower(field("payment_method")))
	t.FixedExpense = parseBool(field("fixed_expense"))
	if t.InstallmentsTotal, err = parseInt(field("installments_total")); err != nil {
		return t, fmt.Errorf("%w: %v", core.ErrInvalidInstallments, err)
	}
	if t.InstallmentsPaid, err = parseInt(field("installments_paid")); err != nil {
		return t, fmt.Errorf("%w: %v", core.ErrInvalidInstallments, err)
	}
	return t, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "x", "y":
		return true
	}
	return false
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if v == target {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
