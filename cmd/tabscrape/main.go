package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baxromumarov/tabscrape/internal/config"
	"github.com/baxromumarov/tabscrape/internal/httpx"
)

type app struct {
	configFile string
	backend    string
	logLevel   string

	cfg     config.Config
	fetcher httpx.Fetcher
	logger  *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tabscrape",
		Short:         "Extract tables from web pages, CSV files and JSON APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", config.DefaultFile, "JSON5 config file")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "fetch backend: colly or resty")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(a.runCmd(), a.fetchCmd(), a.tablesCmd(), a.extractCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	// Logs go to stderr so stdout carries only extracted data.
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(a.logger)

	a.fetcher, err = httpx.New(cfg.Backend, cfg.FetchOptions())
	return err
}
