// Package analytics computes reports over a ledger snapshot: installment
// schedules, spending trends and forecasts, unusual spending, savings
// projections and category suggestions.
//
// Every function is a pure function of its arguments. The ledger passed in is
// never modified and no function performs I/O or reads the wall clock, so the
// same snapshot can be analysed from several goroutines at once.
package analytics

// Status tells callers whether a report had enough data to be computed. An
// empty report with StatusOK means "nothing found", which is different from
// "not enough data yet".
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// MinMonths is the number of distinct months of data trend, forecast and
// savings analysis require.
const MinMonths = 3

// baselineMonths caps how far back forecasts and savings projections look.
const baselineMonths = 6
