package main

import (
	"os"

	"github.com/fatih/color"

	"saldo/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := newApp().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
