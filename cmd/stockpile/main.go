package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/stockpile/internal/config"
	"github.com/rxtech-lab/stockpile/internal/logger"
	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/internal/updater"
	"github.com/rxtech-lab/stockpile/pkg/errors"
	"github.com/rxtech-lab/stockpile/pkg/marketdata"
	"github.com/rxtech-lab/stockpile/pkg/storage"
)

// app bundles the long-lived objects every command needs.
type app struct {
	config  config.Config
	logger  *logger.Logger
	store   *storage.Store
	updater *updater.Updater
}

// setup builds the application from the config file named by the global
// --config flag.
func setup(cmd *cli.Command) (*app, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	log, err := logger.NewDevelopmentLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	provider, err := marketdata.NewProvider(marketdata.ProviderType(cfg.Provider), marketdata.ProviderOptions{
		APIKey:  cfg.PolygonAPIKey(),
		Timeout: cfg.RequestTimeout.Std(),
	})
	if err != nil {
		return nil, err
	}

	fetcher, err := marketdata.NewFetcher(provider, marketdata.FetcherConfig{
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay.Std(),
		ShowProgress: true,
	}, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	defaultStart, err := cfg.StartDate()
	if err != nil {
		store.Close()

		return nil, err
	}

	return &app{
		config:  cfg,
		logger:  log,
		store:   store,
		updater: updater.New(fetcher, store, log, defaultStart),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store")
	}
}

// symbolArgs returns the positional symbols, falling back to the configured
// default list.
func (a *app) symbolArgs(cmd *cli.Command) []string {
	if args := cmd.Args().Slice(); len(args) > 0 {
		symbols := make([]string, 0, len(args))
		for _, arg := range args {
			symbols = append(symbols, strings.ToUpper(arg))
		}

		return symbols
	}

	return a.config.Symbols
}

// printSummary renders the per-symbol report after a download or update run.
func printSummary(title string, summary updater.Summary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 60))

	for _, outcome := range summary.Outcomes {
		switch {
		case outcome.Err != nil:
			fmt.Printf("  %-10s FAILED: %v\n", outcome.Symbol, outcome.Err)
		case outcome.UpToDate:
			fmt.Printf("  %-10s up to date\n", outcome.Symbol)
		default:
			fmt.Printf("  %-10s +%d rows\n", outcome.Symbol, outcome.RowsAdded)
		}
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  %d updated, %d failed, %d total in %s\n",
		summary.Updated(), summary.Failed(), len(summary.Outcomes),
		summary.Duration.Round(time.Millisecond))
	fmt.Println(strings.Repeat("=", 60))
}

// summaryError converts a run summary into the process exit status: the run
// only fails when every symbol failed.
func summaryError(summary updater.Summary) error {
	if summary.AllFailed() {
		return fmt.Errorf("all %d symbols failed", len(summary.Outcomes))
	}

	return nil
}

func dailyAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	start := cmd.Timestamp("start")
	if start.IsZero() {
		if start, err = a.config.StartDate(); err != nil {
			return err
		}
	}

	end := cmd.Timestamp("end")
	if end.IsZero() {
		end = time.Now().UTC()
	}

	summary := a.updater.Download(ctx, a.symbolArgs(cmd), start, end, types.IntervalOneDay)
	printSummary("Daily download", summary)

	return summaryError(summary)
}

func intradayAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	interval := types.Interval(cmd.String("interval"))
	if !interval.Valid() || !interval.IsIntraday() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported intraday interval: %s", interval)
	}

	end := time.Now().UTC()

	start := cmd.Timestamp("start")
	if start.IsZero() {
		// Default to the full window the upstream API can serve.
		start, _ = interval.EarliestStart(end)
	}

	summary := a.updater.Download(ctx, a.symbolArgs(cmd), start, end, interval)
	printSummary(fmt.Sprintf("Intraday download (%s)", interval), summary)

	return summaryError(summary)
}

func updateAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	interval := types.Interval(cmd.String("interval"))
	if !interval.Valid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", interval)
	}

	// Without explicit symbols, refresh everything already in the catalog,
	// falling back to the configured defaults for a first run.
	symbols := cmd.Args().Slice()
	if len(symbols) == 0 {
		stored, err := a.store.Symbols(storage.GranularityFor(interval))
		if err != nil {
			return err
		}

		if len(stored) > 0 {
			symbols = stored
		}
	}

	if len(symbols) == 0 {
		symbols = a.config.Symbols
	} else {
		for i, symbol := range symbols {
			symbols[i] = strings.ToUpper(symbol)
		}
	}

	summary := a.updater.Update(ctx, symbols, interval)
	printSummary(fmt.Sprintf("Incremental update (%s)", interval), summary)

	return summaryError(summary)
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	interval := types.Interval(cmd.String("interval"))
	if !interval.Valid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", interval)
	}

	outDir := cmd.String("out")
	if outDir == "" {
		outDir = a.config.ExportDir
	}

	symbols := a.symbolArgs(cmd)
	failed := 0

	for _, symbol := range symbols {
		path, err := a.store.ExportCSV(symbol, interval, outDir)
		if err != nil {
			failed++

			fmt.Printf("  %-10s FAILED: %v\n", symbol, err)

			continue
		}

		fmt.Printf("  %-10s -> %s\n", symbol, path)
	}

	if failed == len(symbols) {
		return fmt.Errorf("all %d exports failed", len(symbols))
	}

	return nil
}

func symbolsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	for _, granularity := range []storage.Granularity{storage.GranularityDaily, storage.GranularityIntraday} {
		symbols, err := a.store.Symbols(granularity)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d):\n", granularity, len(symbols))

		for _, symbol := range symbols {
			fmt.Printf("  %s\n", symbol)
		}
	}

	return nil
}

func deleteAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if cmd.Args().Len() == 0 {
		return errors.New(errors.ErrCodeMissingParameter, "delete requires at least one symbol")
	}

	granularity := storage.GranularityDaily
	if cmd.Bool("intraday") {
		granularity = storage.GranularityIntraday
	}

	for _, symbol := range a.symbolArgs(cmd) {
		deleted, err := a.store.Delete(symbol, granularity)
		if err != nil {
			return err
		}

		if deleted {
			fmt.Printf("  %-10s deleted\n", symbol)
		} else {
			fmt.Printf("  %-10s no stored data\n", symbol)
		}
	}

	return nil
}

func main() {
	dateConfig := cli.TimestampConfig{
		Layouts: []string{"2006-01-02"},
	}

	cmd := &cli.Command{
		Name:  "stockpile",
		Usage: "Download and maintain a local catalog of historical stock data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the yaml config file",
				Value:   "stockpile.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "daily",
				Usage:     "Download daily bars for the given symbols (or the configured defaults)",
				ArgsUsage: "[symbols...]",
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:    "start",
						Aliases: []string{"s"},
						Usage:   "Start date in `YYYY-MM-DD` format. Defaults to the configured start of history.",
						Config:  dateConfig,
					},
					&cli.TimestampFlag{
						Name:    "end",
						Aliases: []string{"e"},
						Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
						Config:  dateConfig,
					},
				},
				Action: dailyAction,
			},
			{
				Name:      "intraday",
				Usage:     "Download intraday bars for the given symbols (or the configured defaults)",
				ArgsUsage: "[symbols...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Bar interval (1m, 2m, 5m, 15m, 30m, 1h)",
						Value:   string(types.IntervalOneHour),
					},
					&cli.TimestampFlag{
						Name:    "start",
						Aliases: []string{"s"},
						Usage:   "Start date in `YYYY-MM-DD` format. Defaults to the interval's maximum lookback.",
						Config:  dateConfig,
					},
				},
				Action: intradayAction,
			},
			{
				Name:      "update",
				Usage:     "Incrementally refresh stored data from the last stored bar",
				ArgsUsage: "[symbols...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Bar interval (1m, 2m, 5m, 15m, 30m, 1h, 1d)",
						Value:   string(types.IntervalOneDay),
					},
				},
				Action: updateAction,
			},
			{
				Name:      "export",
				Usage:     "Export stored series to CSV",
				ArgsUsage: "[symbols...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Bar interval of the series to export",
						Value:   string(types.IntervalOneDay),
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output directory. Defaults to the configured export directory.",
					},
				},
				Action: exportAction,
			},
			{
				Name:   "symbols",
				Usage:  "List symbols stored in the catalog",
				Action: symbolsAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete stored series for the given symbols",
				ArgsUsage: "symbols...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "intraday",
						Usage: "Delete intraday series instead of daily",
					},
				},
				Action: deleteAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
