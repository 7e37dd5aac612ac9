package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Expense is a single named outflow. It is never edited in place;
	// changing one means removing it and adding a replacement.
	Expense struct {
		Name   string
		Amount decimal.Decimal
	}

	// Ledger is one user's current income and ordered expense list.
	// It is a value: every operation returns a new Ledger and leaves the
	// receiver untouched. The zero value is an empty ledger.
	Ledger struct {
		income   decimal.Decimal
		expenses []Expense
	}
)

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{Field: "name", Input: e.Name, Err: ErrEmptyName}
	}
	if e.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Input: e.Amount.String(), Err: ErrNegativeAmount}
	}
	return nil
}

// Equal reports whether both expenses carry the same name and amount.
func (e Expense) Equal(o Expense) bool {
	return e.Name == o.Name && e.Amount.Equal(o.Amount)
}

// NewLedger returns the empty ledger a user starts with: income not set and
// no expenses.
func NewLedger() Ledger {
	return Ledger{}
}

// Restore rebuilds a ledger from persisted values, validating them the same
// way user input is validated. Adapters use it when loading.
func Restore(income decimal.Decimal, expenses []Expense) (Ledger, error) {
	if income.IsNegative() {
		return Ledger{}, &ValidationError{Field: "income", Input: income.String(), Err: ErrNegativeAmount}
	}
	for _, e := range expenses {
		if err := e.Validate(); err != nil {
			return Ledger{}, err
		}
	}
	out := Ledger{income: income}
	if len(expenses) > 0 {
		out.expenses = append([]Expense(nil), expenses...)
	}
	return out, nil
}

// Income returns the current income; zero means not yet set.
func (l Ledger) Income() decimal.Decimal { return l.income }

// IsIncomeSet reports whether an income other than zero has been entered.
func (l Ledger) IsIncomeSet() bool { return !l.income.IsZero() }

// Expenses returns a copy of the expense list in insertion order.
func (l Ledger) Expenses() []Expense {
	return append([]Expense(nil), l.expenses...)
}

// Len returns the number of expenses.
func (l Ledger) Len() int { return len(l.expenses) }

// SetIncome parses input as a non-negative decimal and replaces the income.
// Expenses are not touched.
func (l Ledger) SetIncome(input string) (Ledger, error) {
	amount, err := ParseAmount(input)
	if err != nil {
		return l, &ValidationError{Field: "income", Input: input, Err: err}
	}
	return Ledger{income: amount, expenses: l.expenses}, nil
}

// AddExpense appends a new expense built from user input.
func (l Ledger) AddExpense(name, amount string) (Ledger, error) {
	if strings.TrimSpace(name) == "" {
		return l, &ValidationError{Field: "name", Input: name, Err: ErrEmptyName}
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return l, &ValidationError{Field: "amount", Input: amount, Err: err}
	}
	return l.Append(Expense{Name: name, Amount: value})
}

// Append adds an already built expense at the end of the list.
func (l Ledger) Append(e Expense) (Ledger, error) {
	if err := e.Validate(); err != nil {
		return l, err
	}
	next := make([]Expense, len(l.expenses), len(l.expenses)+1)
	copy(next, l.expenses)
	return Ledger{income: l.income, expenses: append(next, e)}, nil
}

// RemoveExpenseAt drops the expense at position i and shifts the rest down.
func (l Ledger) RemoveExpenseAt(i int) (Ledger, error) {
	if i < 0 || i >= len(l.expenses) {
		return l, &IndexError{Index: i, Len: len(l.expenses)}
	}
	next := make([]Expense, 0, len(l.expenses)-1)
	next = append(next, l.expenses[:i]...)
	next = append(next, l.expenses[i+1:]...)
	return Ledger{income: l.income, expenses: next}, nil
}

// TotalExpenses sums every expense amount.
func (l Ledger) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Remaining returns income minus total expenses. Overspending yields a
// negative value.
func (l Ledger) Remaining() decimal.Decimal {
	return l.income.Sub(l.TotalExpenses())
}

// Equal compares income and the ordered expense list.
func (l Ledger) Equal(o Ledger) bool {
	if !l.income.Equal(o.income) || len(l.expenses) != len(o.expenses) {
		return false
	}
	for i := range l.expenses {
		if !l.expenses[i].Equal(o.expenses[i]) {
			return false
		}
	}
	return true
}
