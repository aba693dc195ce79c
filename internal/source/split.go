package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/custseg/internal/models"
	"github.com/shopspring/decimal"
)

// Column names of the wide export, lower-cased.
const (
	colTransactionID   = "transaction_id"
	colTransactionType = "transaction_type"
	colAmount          = "amount"
	colTransactionDate = "transaction_date"
	colCustomerID      = "customer_id"
	colFullName        = "full_name"
	colFirstName       = "first_name"
	colLastName        = "last_name"
	colEmail           = "email"
	colPhone           = "phone"
	colAccountID       = "account_id"
	colAccountType     = "account_type"
	colBalance         = "balance"
	colOpeningDate     = "opening_date"
	colLoanID          = "loan_id"
	colLoanAmount      = "loan_amount"
	colLoanType        = "loan_type"
	colStartDate       = "start_date"
	colEndDate         = "end_date"
	colInterestRate    = "interest_rate"
)

// absentLoan is the placeholder some exports write where a customer has no loan.
const absentLoan = "none"

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006 15:04",
	"01/02/2006",
	time.RFC3339,
}

type splitStats struct {
	coercedDates int
}

// row gives named access to one export record.
type row struct {
	index  map[string]int
	fields []string
	line   int
	stats  *splitStats
}

func (r row) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) number(col string, emptyIsZero bool) (decimal.Decimal, error) {
	s := r.get(col)
	if s == "" && emptyIsZero {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: row %d column %s: invalid number %q", models.ErrInvalidInput, r.line, col, s)
	}
	return d, nil
}

// date parses an optional timestamp; values that match no layout become the zero time.
func (r row) date(col string) time.Time {
	s := r.get(col)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	r.stats.coercedDates++
	return time.Time{}
}

func (r row) names() (first, last string) {
	if _, ok := r.index[colFullName]; ok {
		full := strings.Join(strings.Fields(r.get(colFullName)), " ")
		first, last, _ = strings.Cut(full, " ")
		return first, last
	}
	return r.get(colFirstName), r.get(colLastName)
}

// Split turns the records of a wide export into the four entity tables. The first
// record is the header; column names match case-insensitively. Each table keeps the
// first occurrence of every entity id, in the order ids are first seen.
func Split(rows [][]string) (models.Tables, error) {
	tables, _, err := split(rows)
	return tables, err
}

func split(rows [][]string) (models.Tables, splitStats, error) {
	var stats splitStats
	if len(rows) == 0 {
		return models.Tables{}, stats, fmt.Errorf("%w: export has no header", models.ErrInvalidInput)
	}
	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := index[colCustomerID]; !ok {
		return models.Tables{}, stats, fmt.Errorf("%w: export has no %s column", models.ErrInvalidInput, colCustomerID)
	}

	var t models.Tables
	seenCustomers := make(map[string]struct{})
	seenAccounts := make(map[string]struct{})
	seenTransactions := make(map[string]struct{})
	seenLoans := make(map[string]struct{})

	for i, fields := range rows[1:] {
		r := row{index: index, fields: fields, line: i + 2, stats: &stats}
		if isBlank(fields) {
			continue
		}
		customerID := r.get(colCustomerID)
		if customerID == "" {
			return models.Tables{}, stats, fmt.Errorf("%w: row %d has no customer id", models.ErrInvalidInput, r.line)
		}

		if _, ok := seenCustomers[customerID]; !ok {
			seenCustomers[customerID] = struct{}{}
			first, last := r.names()
			t.Customers = append(t.Customers, models.Customer{
				ID:        customerID,
				FirstName: first,
				LastName:  last,
				Email:     r.get(colEmail),
				Phone:     r.get(colPhone),
			})
		}

		if id := r.get(colAccountID); id != "" {
			if _, ok := seenAccounts[id]; !ok {
				balance, err := r.number(colBalance, false)
				if err != nil {
					return models.Tables{}, stats, err
				}
				seenAccounts[id] = struct{}{}
				t.Accounts = append(t.Accounts, models.Account{
					ID:         id,
					Type:       r.get(colAccountType),
					Balance:    balance,
					OpenedAt:   r.date(colOpeningDate),
					CustomerID: customerID,
				})
			}
		}

		if id := r.get(colTransactionID); id != "" {
			if _, ok := seenTransactions[id]; !ok {
				amount, err := r.number(colAmount, false)
				if err != nil {
					return models.Tables{}, stats, err
				}
				seenTransactions[id] = struct{}{}
				t.Transactions = append(t.Transactions, models.Transaction{
					ID:         id,
					Type:       r.get(colTransactionType),
					Amount:     amount,
					Date:       r.date(colTransactionDate),
					CustomerID: customerID,
				})
			}
		}

		if id := r.get(colLoanID); id != "" && !strings.EqualFold(id, absentLoan) {
			if _, ok := seenLoans[id]; !ok {
				amount, err := r.number(colLoanAmount, true)
				if err != nil {
					return models.Tables{}, stats, err
				}
				rate, err := r.number(colInterestRate, true)
				if err != nil {
					return models.Tables{}, stats, err
				}
				seenLoans[id] = struct{}{}
				t.Loans = append(t.Loans, models.Loan{
					ID:           id,
					Amount:       amount,
					Type:         r.get(colLoanType),
					StartDate:    r.date(colStartDate),
					EndDate:      r.date(colEndDate),
					InterestRate: rate,
					CustomerID:   customerID,
				})
			}
		}
	}
	return t, stats, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
