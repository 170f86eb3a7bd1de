package cli

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"allpairs/collector"
	"allpairs/logging"

	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Scan job logs into result tables",
	Long:  "Scans a log tree for finished benchmark logs, appends result rows to the\nper-round tables, and merges them into the aggregate table. Safe to re-run;\nalready-processed logs are skipped.",
	RunE:  runCollect,
}

var collectFlags struct {
	logRoot    string
	resultsDir string
	aliasFile  string
	watch      bool
	interval   time.Duration
	final      bool
	logLevel   string
}

func init() {
	collectCmd.Flags().StringVar(&collectFlags.logRoot, "log-root", "logs", "Root of the job log tree")
	collectCmd.Flags().StringVar(&collectFlags.resultsDir, "results-dir", "", "Result table directory (default <log-root>/results)")
	collectCmd.Flags().StringVar(&collectFlags.aliasFile, "aliases", "", "YAML hostname->alias mapping")
	collectCmd.Flags().BoolVar(&collectFlags.watch, "watch", false, "Keep polling until interrupted")
	collectCmd.Flags().DurationVar(&collectFlags.interval, "interval", 30*time.Second, "Polling interval with --watch")
	collectCmd.Flags().BoolVar(&collectFlags.final, "final", false, "Also emit zero-metric rows for logs without results")
	collectCmd.Flags().StringVar(&collectFlags.logLevel, "log-level", "info", "Log level")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	log := logging.New(logging.Config{Level: collectFlags.logLevel})
	defer log.Sync()

	resultsDir := collectFlags.resultsDir
	if resultsDir == "" {
		resultsDir = filepath.Join(collectFlags.logRoot, "results")
	}

	coll, err := collector.New(collectFlags.logRoot, resultsDir, collectFlags.aliasFile, log)
	if err != nil {
		return err
	}

	if collectFlags.watch {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		coll.Watch(ctx, collectFlags.interval)
	}

	n, err := coll.Scan(collectFlags.final)
	if err != nil {
		return err
	}
	log.Infof("collected %d new results", n)

	path, err := coll.Aggregate()
	if err != nil {
		return err
	}
	log.Infof("aggregate table: %s", path)
	return nil
}
