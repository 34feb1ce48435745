package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheetpress-cli/internal/config"
	"sheetpress-cli/internal/db"
	"sheetpress-cli/internal/gdoc"
	"sheetpress-cli/internal/media"
	"sheetpress-cli/internal/model"
	"sheetpress-cli/internal/pipeline"
	"sheetpress-cli/internal/runlog"
	"sheetpress-cli/internal/schedule"
	"sheetpress-cli/internal/sheets"
	"sheetpress-cli/internal/wordpress"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
)

func init() {
	cobra.OnInitialize(initApp)
}

func initApp() {
	// A .env file is optional; environment wins over the config file.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err = db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := database.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
}

// buildPipeline and buildSweeper take the run log as a parameter so watch
// mode can hand both writers the same instance; the log's mutex only
// serializes appends that go through one instance.
func buildPipeline(outcomes *runlog.Log) *pipeline.Pipeline {
	wpClient := wordpress.New(cfg.WPAPIURL, cfg.WPAPIUser, cfg.WPAPIKey, cfg.HTTPTimeout)

	return &pipeline.Pipeline{
		SpreadsheetID: cfg.SpreadsheetID,
		Sheets:        sheets.New(cfg.SheetsBaseURL, cfg.GoogleToken, cfg.HTTPTimeout),
		Docs:          gdoc.NewClient(cfg.DocsBaseURL, cfg.GoogleToken, cfg.HTTPTimeout),
		Publisher:     wpClient,
		Images:        media.NewResolver(wpClient, cfg.HTTPTimeout),
		Store:         database,
		Outcomes:      outcomes,
		Decider:       schedule.NewDecider(),
		Categories:    cfg.Categories,
	}
}

func buildSweeper(outcomes *runlog.Log) *schedule.Sweeper {
	return &schedule.Sweeper{
		Store:      database,
		Docs:       gdoc.NewClient(cfg.DocsBaseURL, cfg.GoogleToken, cfg.HTTPTimeout),
		Publisher:  wordpress.New(cfg.WPAPIURL, cfg.WPAPIUser, cfg.WPAPIKey, cfg.HTTPTimeout),
		Outcomes:   outcomes,
		Categories: cfg.Categories,
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "sheetpress-cli",
		Short: "Publish spreadsheet-tracked articles to WordPress",
		Long:  "Walk a Google Sheet of articles, convert their Google Docs to HTML, and publish them to a WordPress site, writing status back to the sheet",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sheetpress.yaml", "Path to YAML config file")

	var (
		startRow int
		endRow   int
	)

	var processCmd = &cobra.Command{
		Use:   "process",
		Short: "Run one full ingest pass over the sheet",
		RunE:  runProcess(&startRow, &endRow),
	}
	processCmd.Flags().IntVar(&startRow, "start", 0, "First row to process (1-based, inclusive)")
	processCmd.Flags().IntVar(&endRow, "end", 0, "Last row to process (inclusive)")

	var sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Publish stored articles whose scheduled time has passed",
		RunE:  runSweep,
	}

	var (
		ingestInterval time.Duration
		sweepInterval  time.Duration
	)

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Run the ingest pass and the scheduled-publish sweep periodically",
		RunE:  runWatch(&ingestInterval, &sweepInterval),
	}
	watchCmd.Flags().DurationVar(&ingestInterval, "ingest-interval", 0, "Ingest pass interval (default from config)")
	watchCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 0, "Sweep interval (default from config)")

	var logCount int

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show the most recent run log entries",
		RunE:  runLog(&logCount),
	}
	logCmd.Flags().IntVar(&logCount, "n", 50, "Number of entries to show")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	if database != nil {
		database.Close()
	}
}

func runProcess(startRow, endRow *int) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var filter *model.RowRange
		if *startRow != 0 || *endRow != 0 {
			if *startRow <= 0 || *endRow <= 0 || *startRow > *endRow {
				return fmt.Errorf("invalid row range %d-%d", *startRow, *endRow)
			}
			filter = &model.RowRange{Start: *startRow, End: *endRow}
		}

		buildPipeline(runlog.New(cfg.RunLogPath, cfg.RunLogMax)).RunFullPass(cmd.Context(), filter)
		return nil
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	buildSweeper(runlog.New(cfg.RunLogPath, cfg.RunLogMax)).Sweep(cmd.Context())
	return nil
}

func runWatch(ingestInterval, sweepInterval *time.Duration) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ingest := *ingestInterval
		if ingest <= 0 {
			ingest = cfg.IngestInterval
		}
		sweep := *sweepInterval
		if sweep <= 0 {
			sweep = cfg.SweepInterval
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := log.New(os.Stderr, "", log.LstdFlags)

		// The ingest pass and the sweep run in separate goroutines; they
		// must share one run log instance so appends are serialized.
		outcomes := runlog.New(cfg.RunLogPath, cfg.RunLogMax)
		p := buildPipeline(outcomes)
		s := buildSweeper(outcomes)

		go schedule.Every(ctx, ingest, "ingest pass", logger, func(ctx context.Context) {
			p.RunFullPass(ctx, nil)
		})

		schedule.Every(ctx, sweep, "scheduled-publish sweep", logger, s.Sweep)
		return nil
	}
}

func runLog(logCount *int) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		entries, err := runlog.New(cfg.RunLogPath, cfg.RunLogMax).Tail(*logCount)
		if err != nil {
			return fmt.Errorf("reading run log: %w", err)
		}

		for _, entry := range entries {
			fmt.Printf("%s  %-20s %-10s %s\n",
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Action, entry.Status, entry.Detail)
		}
		return nil
	}
}
