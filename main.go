package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fundtracker/internal/aggregate"
	"fundtracker/internal/collector"
	"fundtracker/internal/config"
	"fundtracker/internal/fetcher"
	"fundtracker/internal/holdings"
	"fundtracker/internal/pipeline"
	"fundtracker/internal/ratelimit"
	"fundtracker/internal/report"
	"fundtracker/internal/snapshot"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var cfg *config.Config

func main() {
	// Create context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fundtracker",
	Short: "Weighted daily change of mutual funds from their stock holdings",
	Long: `fundtracker scrapes the holdings table of each listed mutual fund,
reads the live price change of every equity holding and reports each
fund's change weighted by the holdings' asset share.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("funds", "", "fund list file override")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent fund page fetches")
	rootCmd.PersistentFlags().Int("chunk-size", 0, "stocks per browser context")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(reportCmd)
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("funds") {
		cfg.FundListFile, _ = flags.GetString("funds")
	}
	if flags.Changed("workers") {
		cfg.MaxWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize, _ = flags.GetInt("chunk-size")
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skip config loading
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fundtracker %s (%s)\n", version, commit)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect holdings and prices, then print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCollect(cmd.Context()); err != nil {
			return err
		}
		return runReport(cmd)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect fund holdings and stock snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollect(cmd.Context())
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute and print the weighted change from collected data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd)
	},
}

func newStore() (*report.Store, error) {
	return report.NewStore(cfg.HoldingsDir, cfg.StocksFile, cfg.ReportFile)
}

func runCollect(ctx context.Context) error {
	ids, err := pipeline.ReadFundListFile(cfg.FundListFile)
	if err != nil {
		return err
	}
	store, err := newStore()
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.RequestsPerSecond)

	// Create the fund page stage
	client := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout:    cfg.HTTPTimeout,
		RetryCount: cfg.HTTPRetryCount,
		UserAgent:  cfg.UserAgent,
	})
	coll := collector.New(
		fetcher.NewHTTPPageFetcher(client, limiter),
		holdings.NewTableExtractor(cfg.HoldingsSelector),
		store,
		cfg.MaxWorkers,
	)

	// One browser for the whole run
	browser, err := snapshot.LaunchChrome(ctx, snapshot.ChromeOptions{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		ExecPath:  cfg.ChromePath,
		RemoteURL: cfg.ChromeRemoteURL,
	})
	if err != nil {
		return err
	}
	defer browser.Close()

	sf := snapshot.NewFetcher(limiter)
	sf.Selector = cfg.PriceSelector
	sf.PageLoadTimeout = cfg.PageLoadTimeout
	sf.ElementTimeout = cfg.ElementTimeout
	orch := snapshot.NewOrchestrator(browser, sf, cfg.ChunkSize, cfg.StockBaseURL)

	slog.Info("collecting funds", "funds", len(ids), "workers", cfg.MaxWorkers, "chunk_size", cfg.ChunkSize)
	_, err = pipeline.Collect(ctx, pipeline.FundURLs(cfg.FundBaseURL, ids), coll, orch, store)
	return err
}

func runReport(cmd *cobra.Command) error {
	ids, err := pipeline.ReadFundListFile(cfg.FundListFile)
	if err != nil {
		return err
	}
	store, err := newStore()
	if err != nil {
		return err
	}
	policy, err := aggregate.ParsePolicy(cfg.MissingPolicy)
	if err != nil {
		return err
	}

	reports, err := pipeline.Report(ids, store, policy)
	if err != nil {
		return err
	}

	out, err := report.Render(reports, 0)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	slog.Info("report written", "file", cfg.ReportFile, "funds", len(reports))
	return nil
}
