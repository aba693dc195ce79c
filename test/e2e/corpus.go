// Package e2e provides end-to-end tests over a synthetic bank with planted customer segments.
package e2e

import (
	"fmt"
	"sort"
)

// ExportHeader is the column layout of the wide bank export.
var ExportHeader = []string{
	"Transaction_ID", "Transaction_Type", "Amount", "Transaction_Date",
	"Customer_ID", "Full_Name", "Email", "Phone",
	"Account_ID", "Account_Type", "Balance", "Opening_Date",
	"Loan_ID", "Loan_Amount", "Loan_Type", "Start_Date", "End_Date", "Interest_Rate",
}

// Persona describes the behavior shared by every customer of one planted segment.
type Persona struct {
	Name         string
	Accounts     int
	Balance      int
	Transactions int
	Amount       int
	Loans        int
	LoanAmount   int
}

// Personas are far apart on at least one feature so any sane clustering recovers them.
var Personas = []Persona{
	{Name: "steady", Accounts: 1, Balance: 5_000, Transactions: 3, Amount: 100},
	{Name: "wealthy", Accounts: 2, Balance: 500_000, Transactions: 1, Amount: 50},
	{Name: "active", Accounts: 1, Balance: 8_000, Transactions: 20, Amount: 300},
	{Name: "borrower", Accounts: 1, Balance: 3_000, Transactions: 3, Amount: 100, Loans: 3, LoanAmount: 200_000},
}

// Corpus holds a generated export and the planted membership of every customer.
type Corpus struct {
	Rows           [][]string
	Groups         map[string][]string
	TotalCustomers int
}

// BuildCorpus returns an export with perPersona customers for each persona.
// Customers of a persona differ only by small jitter.
func BuildCorpus(perPersona int) *Corpus {
	c := &Corpus{
		Rows:   [][]string{append([]string(nil), ExportHeader...)},
		Groups: make(map[string][]string, len(Personas)),
	}
	n := 0
	for _, p := range Personas {
		for i := 0; i < perPersona; i++ {
			id := fmt.Sprintf("C%04d", n)
			c.Rows = append(c.Rows, customerRows(id, n, i, p)...)
			c.Groups[p.Name] = append(c.Groups[p.Name], id)
			n++
		}
	}
	c.TotalCustomers = n
	return c
}

// PersonaNames returns the persona names in a stable order.
func (c *Corpus) PersonaNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// customerRows emits one row per transaction, account, or loan, whichever is most numerous.
// Every entity appears on at least one row.
func customerRows(id string, n, jitter int, p Persona) [][]string {
	rows := max(p.Transactions, p.Accounts, p.Loans, 1)
	out := make([][]string, 0, rows)
	for r := 0; r < rows; r++ {
		txID, txType, amount, txDate := "", "", "", ""
		if r < p.Transactions {
			txID = fmt.Sprintf("T%04d-%02d", n, r)
			txType = "Deposit"
			amount = fmt.Sprint(p.Amount + jitter%5)
			txDate = fmt.Sprintf("2023-%02d-%02d 09:30:00", r%12+1, jitter%28+1)
		}
		a := r % p.Accounts
		loanID, loanAmount, loanType, start, end, rate := "None", "", "None", "", "", ""
		if p.Loans > 0 {
			loanID = fmt.Sprintf("L%04d-%d", n, r%p.Loans)
			loanAmount = fmt.Sprint(p.LoanAmount + jitter*10)
			loanType = "Mortgage"
			start, end, rate = "2021-06-01", "2041-06-01", "3.75"
		}
		out = append(out, []string{
			txID, txType, amount, txDate,
			id, fmt.Sprintf("Customer %d", n), fmt.Sprintf("%s@example.com", id), "555-0100",
			fmt.Sprintf("A%04d-%d", n, a), "Savings", fmt.Sprint(p.Balance + jitter*3), "2019-03-15",
			loanID, loanAmount, loanType, start, end, rate,
		})
	}
	return out
}
