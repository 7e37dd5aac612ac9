package store

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Document is the remote representation of a ledger:
//
//	{"income": 1500, "expenses": [{"name": "Rent", "amount": 800}]}
//
// Amounts travel as JSON numbers but are decoded without passing through
// float64, so no precision is lost.
type Document struct {
	Income   json.Number       `json:"income"`
	Expenses []DocumentExpense `json:"expenses"`
}

type DocumentExpense struct {
	Name   string      `json:"name"`
	Amount json.Number `json:"amount"`
}

// NewDocument converts a ledger into its document form.
func NewDocument(l core.Ledger) Document {
	doc := Document{
		Income:   json.Number(l.Income().String()),
		Expenses: make([]DocumentExpense, 0, l.Len()),
	}
	for _, e := range l.Expenses() {
		doc.Expenses = append(doc.Expenses, DocumentExpense{
			Name:   e.Name,
			Amount: json.Number(e.Amount.String()),
		})
	}
	return doc
}

// Ledger validates the document and rebuilds the ledger it describes.
// A missing income field reads as zero, matching a never-set income.
func (d Document) Ledger() (core.Ledger, error) {
	income := decimal.Zero
	if d.Income != "" {
		v, err := decimal.NewFromString(d.Income.String())
		if err != nil {
			return core.Ledger{}, fmt.Errorf("%w: income %q", ErrBadPayload, d.Income)
		}
		income = v
	}
	expenses := make([]core.Expense, 0, len(d.Expenses))
	for i, e := range d.Expenses {
		amount, err := decimal.NewFromString(e.Amount.String())
		if err != nil {
			return core.Ledger{}, fmt.Errorf("%w: expense %d amount %q", ErrBadPayload, i, e.Amount)
		}
		expenses = append(expenses, core.Expense{Name: e.Name, Amount: amount})
	}
	l, err := core.Restore(income, expenses)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return l, nil
}

// MarshalLedger encodes a ledger as a JSON document.
func MarshalLedger(l core.Ledger) ([]byte, error) {
	return json.Marshal(NewDocument(l))
}

// UnmarshalLedger decodes a JSON document produced by MarshalLedger or by
// any client writing the same shape.
func UnmarshalLedger(data []byte) (core.Ledger, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Ledger{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return doc.Ledger()
}
