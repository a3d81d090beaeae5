// loadstone analyzes Bethesda-style mod lists for compatibility problems,
// suggests a deterministic load order, and estimates system pressure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/analysis"
	"github.com/loadstone-dev/loadstone/app/core/masterlist"
	"github.com/loadstone-dev/loadstone/app/logging"
)

var (
	// Global flags.
	cacheRoot     string
	freshnessDays int
	verbose       bool
	quiet         bool
	timeout       time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "loadstone",
	Short: "Mod-list compatibility analysis for Bethesda games",
	Long: `loadstone analyzes a mod list against a curated masterlist: it reports
incompatibilities, missing requirements, and load-order problems, suggests a
load order, and estimates the list's system pressure.

Reports are deterministic: the same list against the same masterlist version
produces byte-identical output.`,
	Version:       buildVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose, quiet)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheRoot, "cache-root", "",
		"masterlist cache directory (default: platform cache dir, or CACHE_ROOT)")
	rootCmd.PersistentFlags().IntVar(&freshnessDays, "freshness-days", 0,
		"days a cached masterlist stays fresh (default 7, or MASTERLIST_FRESHNESS_DAYS)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute,
		"deadline for a single command (0 disables)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(masterlistCmd)
	rootCmd.AddCommand(gamesCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// buildVersion derives the version string from the build's module info:
// the module version when installed from a tag, plus the VCS revision when
// the build carries one.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	version := info.Main.Version
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			version += " (" + setting.Value[:8] + ")"
		}
	}
	return version
}

// exitCode maps structured engine failures onto the documented exit codes:
// 2 validation, 3 source unavailable, 4 deadline exceeded, 1 anything else.
func exitCode(err error) int {
	switch analysis.KindOf(err) {
	case analysis.KindValidation:
		return 2
	case analysis.KindSourceUnavailable:
		return 3
	case analysis.KindDeadlineExceeded:
		return 4
	default:
		return 1
	}
}

// newEngine builds the store and engine from the environment and the global
// flags; flags win.
func newEngine() (*analysis.Analyzer, *masterlist.Store, error) {
	opts := analysis.FromEnv(logger)
	if cacheRoot != "" {
		opts.CacheRoot = cacheRoot
	}
	if freshnessDays > 0 {
		opts.Freshness = time.Duration(freshnessDays) * 24 * time.Hour
	}

	store, err := masterlist.NewStore(masterlist.Config{
		CacheRoot: opts.CacheRoot,
		Freshness: opts.Freshness,
		Log:       logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return analysis.New(store, opts, logger), store, nil
}

// commandContext derives a command-scoped context: SIGINT and SIGTERM cancel
// it, and the global timeout bounds it unless disabled.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() { cancel(); stop() }
}
