package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/ingest"
	"github.com/mailsift/mailsift/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	cfg        *config.Config
	logger     *slog.Logger
	processed  *store.ProcessedIDStore
	records    *store.RecordStore
	gateway    classifier.Gateway
	orch       *ingest.Orchestrator
	jsonOutput bool
	quietFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "mailsift",
	Short: "mailsift - Gmail ingestion and multi-label classification",
	Long:  "Mailsift: fetch Gmail messages, classify them with the model service, and keep durable, idempotent records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version":
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = setupLogger(cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)

		processed, err = store.NewProcessedIDStore(cfg.ProcessedPath)
		if err != nil {
			return err
		}
		records, err = store.NewRecordStore(cfg.RecordsPath)
		if err != nil {
			return err
		}

		gateway = classifier.NewHTTPGateway(cfg.ClassifierURL, cfg.ClassifierTimeout)
		orch = ingest.New(gateway, processed, records, ingest.NewCache(), cfg.BatchSize, logger)
		return orch.RefreshCache()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("mailsift version %s\n", Version)
	},
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
