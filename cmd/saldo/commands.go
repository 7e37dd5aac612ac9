package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"saldo/internal/cli"
	"saldo/internal/console"
	"saldo/internal/core"
	apihttp "saldo/internal/http"
	"saldo/internal/log"
)

// readSecret returns the flag value or prompts for it without echo.
func readSecret(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show("Secret")
}

func (a *app) credentialsCmd(use, short string, run func(ctx context.Context, id, secret string) (string, error)) *cobra.Command {
	var identifier, secret string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSecret(secret)
			if err != nil {
				return err
			}
			userID, err := run(cmd.Context(), identifier, s)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Signed in as %s (user id %s)", strings.TrimSpace(identifier), userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&identifier, "identifier", "i", "", "account identifier, for example an email address")
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "account secret (prompted when omitted)")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func (a *app) signUpCmd() *cobra.Command {
	return a.credentialsCmd("signup", "Create an account and sign in", func(ctx context.Context, id, secret string) (string, error) {
		return a.auth.SignUp(ctx, id, secret)
	})
}

func (a *app) signInCmd() *cobra.Command {
	return a.credentialsCmd("signin", "Sign in to an existing account", func(ctx context.Context, id, secret string) (string, error) {
		return a.auth.SignIn(ctx, id, secret)
	})
}

func (a *app) signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.SignOut(cmd.Context()); err != nil {
				return err
			}
			pterm.Info.Println("Signed out")
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the ledger and the remaining balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, userID string) (core.Ledger, error) {
				return a.ledgers.Load(ctx, userID)
			})
		},
	}
}

func (a *app) incomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "income <amount>",
		Short: "Set the monthly income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(ctx context.Context, userID string) (core.Ledger, error) {
				return a.ledgers.SetIncome(ctx, userID, args[0])
			})
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Append an expense; the name may span several words",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args[:len(args)-1], " ")
			return a.withLedger(cmd, func(ctx context.Context, userID string) (core.Ledger, error) {
				return a.ledgers.AddExpense(ctx, userID, name, args[len(args)-1])
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <n>",
		Short: "Remove expense number n as listed by show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("expense number must be an integer: %q", args[0])
			}
			return a.withLedger(cmd, func(ctx context.Context, userID string) (core.Ledger, error) {
				return a.ledgers.RemoveExpenseAt(ctx, userID, n-1)
			})
		},
	}
}

// withLedger resolves the user, runs op through the ledger service and
// prints the resulting ledger.
func (a *app) withLedger(cmd *cobra.Command, op func(ctx context.Context, userID string) (core.Ledger, error)) error {
	ctx := cmd.Context()
	userID, err := a.userID()
	if err != nil {
		return err
	}
	if _, err := a.service(ctx); err != nil {
		return err
	}
	l, err := op(ctx, userID)
	if err != nil {
		var ie *core.IndexError
		if errors.As(err, &ie) {
			return fmt.Errorf("no expense number %d (have %d)", ie.Index+1, ie.Len)
		}
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), console.RenderLedger(l))
	return nil
}

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Edit the ledger interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := a.userID()
			if err != nil {
				return err
			}
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			session, err := svc.Open(ctx, userID)
			if err != nil {
				return err
			}
			pterm.Info.Printfln("Write policy: %s. Type help for commands.", svc.Policy())
			return console.NewShell(session, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var rpm int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API on PORT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			srv := apihttp.NewServer(":"+a.cfg.Port, apihttp.Options{
				Ledgers:           svc,
				Auth:              a.auth,
				Ready:             a.primary.Ping,
				RequestsPerMinute: rpm,
				Logger:            a.logger,
			})

			ctx, done := cli.GracefulShutdown(a.logger, 10*time.Second, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					a.logger.Error("HTTP server shutdown error", log.FieldError, err)
				}
			})

			a.logger.Info("Starting HTTP server",
				"addr", srv.Addr,
				log.FieldBackend, a.primary.Type,
				log.FieldWritePolicy, string(svc.Policy()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			<-ctx.Done()
			<-done
			return nil
		},
	}
	cmd.Flags().IntVar(&rpm, "rate-limit", 60, "write requests per minute per client")
	return cmd
}
