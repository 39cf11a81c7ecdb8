package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/baxromumarov/uni-recruit/internal/bootstrap"
	"github.com/baxromumarov/uni-recruit/internal/config"
	"github.com/baxromumarov/uni-recruit/internal/core"
)

var (
	cfgFile     string
	storageFlag string
	dataDir     string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "updater",
	Short: "Refresh university recruitment links",
	Long: `Harvests recruitment notices from university personnel-office pages
and re-seeds each university's recruitment entry URL from web search.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "", "storage backend: postgres or file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding universities.json and jobs.json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every step")

	rootCmd.AddCommand(jobsCommand(), urlsCommand())
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("✘ Error: %s", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if storageFlag != "" {
		os.Setenv("STORAGE", storageFlag)
	}
	if dataDir != "" {
		os.Setenv("DATA_DIR", dataDir)
	}
	return config.Load(path)
}

func setup(cmd *cobra.Command, mutate func(*config.Config)) (*bootstrap.Components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return bootstrap.Setup(cmd.Context(), cfg, printProgress)
}

func printProgress(index, total int, o core.Outcome) {
	prefix := fmt.Sprintf("[%d/%d] %s", index, total, o.Name)
	switch o.Status {
	case core.StatusOK:
		if o.Jobs > 0 {
			color.Green("✓ %s: %d possible postings", prefix, o.Jobs)
		} else {
			fmt.Printf("· %s: no postings\n", prefix)
		}
	case core.StatusResolved:
		color.Green("✓ %s -> %s (%s)", prefix, o.URL, o.Resolution)
	case core.StatusSkipped:
		fmt.Printf("· %s: no recruitment url, skipped\n", prefix)
	case core.StatusCleared:
		if o.Error != "" {
			color.Yellow("⚠ %s: request failed (%s), url cleared", prefix, o.Error)
		} else {
			color.Yellow("⚠ %s: nothing resolved, url cleared", prefix)
		}
	default:
		color.Red("✘ %s: %s (%s)", prefix, o.Status, o.Error)
	}
}

func elapsed(r core.RunReport) time.Duration {
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
}
