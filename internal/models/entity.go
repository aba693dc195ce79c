// Package models defines the entity tables, per-customer feature records, and segmentation results.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a bank customer. Accounts, transactions, and loans reference it by ID.
type Customer struct {
	ID        string `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email,omitempty" db:"email"`
	Phone     string `json:"phone,omitempty" db:"phone"`
}

// Account is a deposit account owned by exactly one customer.
type Account struct {
	ID         string          `json:"id" db:"id"`
	Type       string          `json:"type" db:"type"`
	Balance    decimal.Decimal `json:"balance" db:"balance"`
	OpenedAt   time.Time       `json:"opened_at" db:"opened_at"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
}

// Transaction is a single money movement recorded against a customer.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	Type       string          `json:"type" db:"type"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Date       time.Time       `json:"date" db:"date"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
}

// Loan is a credit facility held by a customer.
type Loan struct {
	ID           string          `json:"id" db:"id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Type         string          `json:"type" db:"type"`
	StartDate    time.Time       `json:"start_date" db:"start_date"`
	EndDate      time.Time       `json:"end_date" db:"end_date"`
	InterestRate decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	CustomerID   string          `json:"customer_id" db:"customer_id"`
}

// Tables holds the four clean relational tables the pipeline consumes.
// Each table is already deduplicated by its own identifier.
type Tables struct {
	Customers    []Customer    `json:"customers"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
	Loans        []Loan        `json:"loans"`
}
