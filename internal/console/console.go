// Package console implements the interactive ledger shell.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"saldo/internal/core"
	"saldo/internal/services"
	"saldo/internal/store"
)

const helpText = `Commands:
  show                  print the ledger
  income <amount>       set the monthly income
  add <name> <amount>   append an expense
  rm <n>                remove expense number n
  save                  write the ledger back
  reload                discard changes and load again
  help                  show this help
  quit                  leave the shell
`

// Shell drives one session from line based input.
type Shell struct {
	session *services.Session
	in      *bufio.Scanner
	out     io.Writer
	prompt  string
}

func NewShell(session *services.Session, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		session: session,
		in:      bufio.NewScanner(in),
		out:     out,
		prompt:  "saldo> ",
	}
}

// Run reads commands until quit, end of input or context cancellation.
// Operation errors are printed and the shell keeps going; only a failed
// read is returned.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprint(s.out, RenderLedger(s.session.Ledger()))
	for {
		if err := ctx.Err(); err != nil {
			s.leave(ctx)
			return nil
		}
		fmt.Fprint(s.out, s.prompt)
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			s.leave(ctx)
			return s.in.Err()
		}
		if quit := s.Exec(ctx, s.in.Text()); quit {
			s.leave(ctx)
			return nil
		}
	}
}

func (s *Shell) leave(ctx context.Context) {
	if s.session.Close(ctx) {
		fmt.Fprintln(s.out, BrightYellow("Unsaved changes discarded."))
	}
}

// Exec runs one command line and reports whether the shell should stop.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var (
		l   core.Ledger
		err error
	)
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprint(s.out, helpText)
		return false
	case "show", "ls":
		fmt.Fprint(s.out, RenderLedger(s.session.Ledger()))
		return false
	case "income":
		if len(args) != 1 {
			s.usage("income <amount>")
			return false
		}
		l, err = s.session.SetIncome(ctx, args[0])
	case "add":
		if len(args) < 2 {
			s.usage("add <name> <amount>")
			return false
		}
		name := strings.Join(args[:len(args)-1], " ")
		l, err = s.session.AddExpense(ctx, name, args[len(args)-1])
	case "rm", "remove":
		if len(args) != 1 {
			s.usage("rm <n>")
			return false
		}
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			s.usage("rm <n>")
			return false
		}
		l, err = s.session.RemoveExpenseAt(ctx, n-1)
	case "save":
		if err := s.session.Save(ctx); err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprintln(s.out, BrightGreen("Saved."))
		return false
	case "reload":
		if err := s.session.Reload(ctx); err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprint(s.out, RenderLedger(s.session.Ledger()))
		return false
	default:
		fmt.Fprintf(s.out, "%s unknown command %q, try help\n", BoldRed("error:"), cmd)
		return false
	}

	if err != nil {
		s.fail(err)
		var pe *store.PersistenceError
		if !errors.As(err, &pe) {
			return false
		}
	}
	fmt.Fprintf(s.out, "Remaining: %s\n", RenderRemaining(l))
	if s.session.Dirty() {
		fmt.Fprintln(s.out, BrightCyan("(unsaved)"))
	}
	return false
}

func (s *Shell) usage(u string) {
	fmt.Fprintf(s.out, "usage: %s\n", u)
}

// fail prints err in a form a user can act on.
func (s *Shell) fail(err error) {
	var (
		ve *core.ValidationError
		ie *core.IndexError
	)
	switch {
	case errors.As(err, &ve):
		fmt.Fprintf(s.out, "%s invalid %s %q\n", BoldRed("error:"), ve.Field, ve.Input)
	case errors.As(err, &ie):
		fmt.Fprintf(s.out, "%s no expense number %d (have %d)\n", BoldRed("error:"), ie.Index+1, ie.Len)
	case store.IsTimeout(err):
		fmt.Fprintf(s.out, "%s storage did not answer in time: %v\n", BoldRed("error:"), err)
	default:
		fmt.Fprintf(s.out, "%s %v\n", BoldRed("error:"), err)
	}
}
