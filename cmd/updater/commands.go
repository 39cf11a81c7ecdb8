package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/baxromumarov/uni-recruit/internal/config"
	"github.com/baxromumarov/uni-recruit/internal/core"
)

func jobsCommand() *cobra.Command {
	var (
		delay          time.Duration
		requireArticle bool
	)

	cmd := &cobra.Command{
		Use:     "jobs",
		Short:   "Rebuild the job list from every recruitment page",
		Example: `  updater jobs --storage file --data-dir ./data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := setup(cmd, func(cfg *config.Config) {
				if cmd.Flags().Changed("delay") {
					cfg.Jobs.Delay = delay
				}
				if requireArticle {
					cfg.Jobs.RequireArticleLike = true
				}
			})
			if err != nil {
				return err
			}
			defer comps.Close()

			color.Cyan("🚀 Updating jobs...")
			report, err := comps.Runner.Run(cmd.Context(), core.RunJobs)
			if err != nil {
				return err
			}

			color.Cyan("🎉 Done in %s: %d possible postings from %d pages (%d skipped, %d failed)",
				elapsed(report),
				report.Jobs,
				report.Count(core.StatusOK),
				report.Count(core.StatusSkipped),
				report.Count(core.StatusFetchFailed)+report.Count(core.StatusParseFailed),
			)
			return nil
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between page requests (default from config)")
	cmd.Flags().BoolVar(&requireArticle, "require-article", false, "keep only titles that look like concrete notices")
	return cmd
}

func urlsCommand() *cobra.Command {
	var (
		delay  time.Duration
		engine string
	)

	cmd := &cobra.Command{
		Use:     "urls",
		Short:   "Re-seed recruitment URLs from web search",
		Example: `  updater urls --engine baidu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := setup(cmd, func(cfg *config.Config) {
				if cmd.Flags().Changed("delay") {
					cfg.Sources.Delay = delay
				}
				if engine != "" {
					cfg.Sources.Engine = engine
				}
			})
			if err != nil {
				return err
			}
			defer comps.Close()

			color.Cyan("🔎 Resolving recruitment URLs via %s...", comps.Config.SearchEngine().Name)
			report, err := comps.Runner.Run(cmd.Context(), core.RunSources)
			if err != nil {
				return err
			}

			color.Cyan("🎉 Done in %s: %d resolved, %d cleared", elapsed(report), report.Resolved, len(report.Failed))
			if n := len(report.Failed); n > 0 {
				shown := report.Failed
				if n > 20 {
					shown = shown[:20]
				}
				color.Yellow("⚠ Unresolved: %v", shown)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between searches (default from config)")
	cmd.Flags().StringVar(&engine, "engine", "", "search engine: baidu or duckduckgo")
	return cmd
}
