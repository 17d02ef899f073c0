// Package cli implements the sheetimport command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
	"github.com/JonMunkholm/SheetImport/internal/history"
	"github.com/JonMunkholm/SheetImport/internal/logging"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

// Replaced in tests.
var (
	loadConfig = config.Load
	openStore  = history.Open
	newFetcher = func(cfg config.SheetsConfig) core.Fetcher {
		return core.NewHTTPFetcher(core.FetcherConfig{
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.FetchTimeout,
			MaxPageSize:       cfg.MaxPageSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			UserAgent:         cfg.UserAgent,
		})
	}
)

type rootOptions struct {
	logLevel string
	cfg      *config.Config
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sheetimport",
		Short: "Import published spreadsheet pages into typed content",
		Long: `sheetimport downloads the CSV export of spreadsheet pages, converts every
cell to the type of the field it maps to and writes the filled content
object to disk as JSON or binary.

Configuration comes from the environment (and a .env file); see
"sheetimport import --help" for per-run flags and project files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		newImportCmd(opts),
		newContainersCmd(),
		newHistoryCmd(opts),
		newTUICmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command line with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// ReportError prints err for a terminal user. Errors with a known cause get
// the mapped message and code first, then the technical detail.
func ReportError(w io.Writer, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, core.ErrCancelled) || !core.IsUserFacing(err) {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	ue := core.NewUserError(err)
	fmt.Fprintf(w, "Error: %s (Code: %s). %s\n", ue.User.Message, ue.User.Code, ue.User.Action)
	fmt.Fprintln(w, "  ", ue.Technical)
}

// newService wires a run service from configuration. The caller closes the
// returned store.
func newService(ctx context.Context, cfg *config.Config) (*core.Service, core.RunStore, error) {
	store, err := openStore(ctx, cfg.History)
	if err != nil {
		return nil, nil, fmt.Errorf("opening run history: %w", err)
	}
	svc := core.NewService(newFetcher(cfg.Sheets), store, core.ServiceConfig{
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		RunTimeout:    cfg.Import.Timeout,
		ResultTTL:     cfg.Import.ResultTTL,
	})
	return svc, store, nil
}
