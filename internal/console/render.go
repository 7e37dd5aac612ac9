package console

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"saldo/internal/core"
)

var (
	BoldRed      = color.New(color.FgRed, color.Bold).SprintFunc()
	BrightGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	BrightYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	BrightCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// RenderLedger draws the expense list as a table followed by the totals.
// Rows are numbered from 1, which is the number rm expects.
func RenderLedger(l core.Ledger) string {
	data := pterm.TableData{{"#", "Name", "Amount"}}
	for i, e := range l.Expenses() {
		data = append(data, []string{strconv.Itoa(i + 1), e.Name, core.FormatAmount(e.Amount)})
	}

	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	if err != nil {
		table = fmt.Sprintf("%d expenses", l.Len())
	}

	income := core.FormatAmount(l.Income())
	if !l.IsIncomeSet() {
		income += " " + BrightYellow("(not set)")
	}
	return fmt.Sprintf("%s\nIncome:    %s\nExpenses:  %s\nRemaining: %s\n",
		table, income, core.FormatAmount(l.TotalExpenses()), RenderRemaining(l))
}

// RenderRemaining shows the balance, red when overspent.
func RenderRemaining(l core.Ledger) string {
	r := core.FormatAmount(l.Remaining())
	if l.Remaining().IsNegative() {
		return BoldRed(r)
	}
	return BrightGreen(r)
}
