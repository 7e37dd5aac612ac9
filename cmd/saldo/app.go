package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"saldo/internal/auth"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/log"
	"saldo/internal/services"
)

// app holds what the commands share. Dependencies are opened lazily so
// that help and flag errors work without a reachable backend.
type app struct {
	root *cobra.Command

	configFile string
	user       string

	cfg     *config.Config
	logger  *log.Logger
	auth    *auth.LocalAuthenticator
	primary *backend.BackendResult
	ledgers *services.LedgerService
	closers []func() error
}

func newApp() *app {
	a := &app{}
	root := &cobra.Command{
		Use:           "saldo",
		Short:         "Track one monthly income against a list of expenses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config-file", "C", "", "TOML or YAML configuration file")
	root.PersistentFlags().StringVarP(&a.user, "user", "u", "", "user id to act on (default: signed in user)")

	root.AddCommand(
		a.signUpCmd(),
		a.signInCmd(),
		a.signOutCmd(),
		a.showCmd(),
		a.incomeCmd(),
		a.addCmd(),
		a.rmCmd(),
		a.shellCmd(),
		a.serveCmd(),
	)
	a.root = root
	return a
}

// Execute runs the selected command and releases what it opened, also
// when the command failed.
func (a *app) Execute() error {
	err := a.root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) setup() error {
	if a.configFile != "" {
		if err := os.Setenv("SALDO_CONFIG_FILE", a.configFile); err != nil {
			return err
		}
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg.LogLevel)
	a.auth = auth.NewLocal(cfg.CredentialsPath, a.logger)
	return nil
}

// service opens the primary backend and the optional event publisher.
func (a *app) service(ctx context.Context) (*services.LedgerService, error) {
	if a.ledgers != nil {
		return a.ledgers, nil
	}
	primary, err := cli.OpenPrimary(ctx, a.logger, a.cfg)
	if err != nil {
		return nil, err
	}
	a.primary = primary
	a.closers = append(a.closers, primary.Close)

	notifier, closeNotifier := cli.Notifier(a.logger, a.cfg)
	if closeNotifier != nil {
		a.closers = append(a.closers, closeNotifier)
	}
	svc, err := cli.NewLedgerService(a.logger, a.cfg, primary, notifier)
	if err != nil {
		return nil, err
	}
	a.ledgers = svc
	return svc, nil
}

// userID resolves --user or the signed in user.
func (a *app) userID() (string, error) {
	if a.user != "" {
		return a.user, nil
	}
	if id, ok := a.auth.CurrentUser(); ok {
		return id, nil
	}
	return "", errors.New("not signed in: run `saldo signin` or pass --user")
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %w", errors.Join(errs...))
	}
	return nil
}
