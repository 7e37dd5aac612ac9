package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustAdd(t *testing.T, l Ledger, name, amount string) Ledger {
	t.Helper()
	next, err := l.AddExpense(name, amount)
	if err != nil {
		t.Fatalf("add %s %s: %v", name, amount, err)
	}
	return next
}

func TestLedgerScenario(t *testing.T) {
	l := NewLedger()
	l = mustAdd(t, l, "Rent", "800")
	l = mustAdd(t, l, "Food", "200")
	if got := l.Remaining(); !got.Equal(dec("-1000")) {
		t.Fatalf("expected -1000, got %s", got)
	}

	l, err := l.SetIncome("1500")
	if err != nil {
		t.Fatalf("set income: %v", err)
	}
	if got := l.Remaining(); !got.Equal(dec("500")) {
		t.Fatalf("expected 500, got %s", got)
	}

	l, err = l.RemoveExpenseAt(0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := l.Remaining(); !got.Equal(dec("1300")) {
		t.Fatalf("expected 1300, got %s", got)
	}
	if l.Len() != 1 || l.Expenses()[0].Name != "Food" {
		t.Fatalf("unexpected expenses: %+v", l.Expenses())
	}
}

func TestRemainingTracksEveryStep(t *testing.T) {
	type step struct {
		add    *Expense
		remove int
	}
	steps := []step{
		{add: &Expense{Name: "A", Amount: dec("10.10")}},
		{add: &Expense{Name: "B", Amount: dec("0")}},
		{add: &Expense{Name: "A", Amount: dec("10.10")}},
		{remove: 1},
		{add: &Expense{Name: "C", Amount: dec("99.99")}},
		{remove: 0},
		{remove: 1},
		{remove: 0},
	}
	l, err := NewLedger().SetIncome("250,50")
	if err != nil {
		t.Fatalf("set income: %v", err)
	}
	for i, s := range steps {
		if s.add != nil {
			l, err = l.AddExpense(s.add.Name, s.add.Amount.String())
		} else {
			l, err = l.RemoveExpenseAt(s.remove)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		sum := decimal.Zero
		for _, e := range l.Expenses() {
			sum = sum.Add(e.Amount)
		}
		if want := l.Income().Sub(sum); !l.Remaining().Equal(want) {
			t.Fatalf("step %d: remaining %s, want %s", i, l.Remaining(), want)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty list, got %d", l.Len())
	}
}

func TestSetIncomeOverwrites(t *testing.T) {
	l := mustAdd(t, NewLedger(), "Coffee", "3")
	l, _ = l.SetIncome("100")
	l, _ = l.SetIncome("40")
	if !l.Income().Equal(dec("40")) {
		t.Fatalf("income should be overwritten, got %s", l.Income())
	}
	if !l.Remaining().Equal(dec("37")) {
		t.Fatalf("unexpected remaining %s", l.Remaining())
	}
	if l.Len() != 1 {
		t.Fatalf("expenses should be untouched")
	}
}

func TestSetIncomeRejectsBadInput(t *testing.T) {
	base, _ := NewLedger().SetIncome("10")
	for _, in := range []string{"", "abc", "-3"} {
		got, err := base.SetIncome(in)
		if !IsValidation(err) {
			t.Fatalf("%q: expected validation error, got %v", in, err)
		}
		if !got.Equal(base) {
			t.Fatalf("%q: ledger changed", in)
		}
	}
}

func TestAddExpenseValidation(t *testing.T) {
	base := mustAdd(t, NewLedger(), "Rent", "800")

	_, err := base.AddExpense("", "10")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" || !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected empty name validation error, got %v", err)
	}

	got, err := base.AddExpense("Coffee", "-5")
	if !errors.As(err, &ve) || ve.Field != "amount" || !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected negative amount validation error, got %v", err)
	}
	if !got.Equal(base) {
		t.Fatalf("ledger changed after failed add")
	}

	if _, err := base.AddExpense("Coffee", "a lot"); !IsValidation(err) {
		t.Fatalf("expected validation error for non-numeric amount, got %v", err)
	}
	if _, err := base.AddExpense("   ", "1"); !IsValidation(err) {
		t.Fatalf("expected validation error for blank name")
	}
}

func TestRemoveExpenseAtOutOfRange(t *testing.T) {
	base := mustAdd(t, mustAdd(t, NewLedger(), "A", "1"), "B", "2")
	for _, i := range []int{5, 2, -1} {
		got, err := base.RemoveExpenseAt(i)
		var ie *IndexError
		if !errors.As(err, &ie) {
			t.Fatalf("index %d: expected IndexError, got %v", i, err)
		}
		if ie.Index != i || ie.Len != 2 {
			t.Fatalf("unexpected error fields: %+v", ie)
		}
		if !got.Equal(base) {
			t.Fatalf("ledger changed after failed remove")
		}
	}
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	a := mustAdd(t, mustAdd(t, NewLedger(), "A", "1"), "B", "2")
	b, _ := a.RemoveExpenseAt(0)
	c := mustAdd(t, b, "C", "3")

	if a.Len() != 2 || a.Expenses()[0].Name != "A" || a.Expenses()[1].Name != "B" {
		t.Fatalf("original ledger mutated: %+v", a.Expenses())
	}
	if b.Len() != 1 || c.Len() != 2 {
		t.Fatalf("unexpected lengths b=%d c=%d", b.Len(), c.Len())
	}

	list := c.Expenses()
	list[0].Name = "changed"
	if c.Expenses()[0].Name != "B" {
		t.Fatalf("Expenses must return a copy")
	}
}

func TestDuplicatesPermitted(t *testing.T) {
	l := mustAdd(t, mustAdd(t, NewLedger(), "Coffee", "2.5"), "Coffee", "2.5")
	if l.Len() != 2 {
		t.Fatalf("duplicates should be kept, got %d", l.Len())
	}
	if !l.TotalExpenses().Equal(dec("5")) {
		t.Fatalf("unexpected total %s", l.TotalExpenses())
	}
}

func TestRestore(t *testing.T) {
	l, err := Restore(dec("100"), []Expense{{Name: "A", Amount: dec("1")}, {Name: "A", Amount: dec("1")}})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if l.Len() != 2 || !l.Remaining().Equal(dec("98")) {
		t.Fatalf("unexpected ledger: %+v", l.Expenses())
	}
	if _, err := Restore(dec("-1"), nil); !IsValidation(err) {
		t.Fatalf("expected validation error for negative income")
	}
	if _, err := Restore(dec("1"), []Expense{{Name: "", Amount: dec("1")}}); !IsValidation(err) {
		t.Fatalf("expected validation error for empty name")
	}
	if !NewLedger().Equal(Ledger{}) || NewLedger().IsIncomeSet() {
		t.Fatalf("new ledger should be empty")
	}
}
