// Package features derives per-customer feature vectors from the entity tables.
package features

import (
	"github.com/hyperjump/custseg/internal/models"
	"github.com/shopspring/decimal"
)

// group accumulates the row count and the sum of one numeric column for a customer.
type group struct {
	count int64
	sum   decimal.Decimal
}

// stats returns the count and arithmetic mean for a group, or two missing
// measures when the customer has no rows in the table.
func (g *group) stats() (count, mean models.Measure) {
	if g == nil || g.count == 0 {
		return models.Missing(), models.Missing()
	}
	avg := g.sum.Div(decimal.NewFromInt(g.count))
	return models.Present(float64(g.count)), models.Present(avg.InexactFloat64())
}

// grouper groups rows by customer and remembers the order customers were first seen.
type grouper struct {
	groups map[string]*group
	order  *[]string
	seen   map[string]struct{}
}

func (g grouper) add(customerID string, value decimal.Decimal) {
	if _, ok := g.seen[customerID]; !ok {
		g.seen[customerID] = struct{}{}
		*g.order = append(*g.order, customerID)
	}
	grp, ok := g.groups[customerID]
	if !ok {
		grp = &group{}
		g.groups[customerID] = grp
	}
	grp.count++
	grp.sum = grp.sum.Add(value)
}

// Aggregate computes one CustomerFeatures row for every customer that appears in at least
// one of the accounts, transactions, or loans tables.
//
// The three per-table group results are outer-joined on customer ID: a customer with no
// rows in a table keeps missing count and mean fields for that table. Rows are ordered by
// the customer's first appearance scanning accounts, then transactions, then loans.
func Aggregate(tables models.Tables) []models.CustomerFeatures {
	var order []string
	seen := make(map[string]struct{})
	newGrouper := func() grouper {
		return grouper{groups: make(map[string]*group), order: &order, seen: seen}
	}

	accounts := newGrouper()
	for _, a := range tables.Accounts {
		accounts.add(a.CustomerID, a.Balance)
	}
	transactions := newGrouper()
	for _, tx := range tables.Transactions {
		transactions.add(tx.CustomerID, tx.Amount)
	}
	loans := newGrouper()
	for _, l := range tables.Loans {
		loans.add(l.CustomerID, l.Amount)
	}

	out := make([]models.CustomerFeatures, 0, len(order))
	for _, id := range order {
		row := models.CustomerFeatures{CustomerID: id}
		row.NumAccounts, row.AvgBalance = accounts.groups[id].stats()
		row.NumTransactions, row.AvgTransactions = transactions.groups[id].stats()
		row.NumLoans, row.AvgLoans = loans.groups[id].stats()
		out = append(out, row)
	}
	return out
}
