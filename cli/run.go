package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"allpairs/collector"
	"allpairs/config"
	"allpairs/executor"
	"allpairs/logging"
	"allpairs/output"
	"allpairs/ssh"
	"allpairs/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full validation schedule",
	RunE:  runRun,
}

var runFlags struct {
	configFile string
	resumeFrom int
	timeout    time.Duration
	jsonOutput bool
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.configFile, "config", "c", "config.yaml", "Path to run configuration")
	runCmd.Flags().IntVar(&runFlags.resumeFrom, "resume-from", -1, "Resume from this round index (overrides config)")
	runCmd.Flags().DurationVar(&runFlags.timeout, "timeout", 0, "Per-job timeout (overrides config)")
	runCmd.Flags().BoolVar(&runFlags.jsonOutput, "json", false, "Emit the run report as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runFlags.configFile)
	if err != nil {
		return err
	}
	if runFlags.resumeFrom >= 0 {
		cfg.ResumeRound = runFlags.resumeFrom
	}
	if runFlags.timeout > 0 {
		cfg.JobTimeout = config.Duration(runFlags.timeout)
	}

	log := logging.New(cfg.Logging)
	defer log.Sync()

	nodes, err := config.ReadNodeFile(cfg.NodeFile)
	if err != nil {
		return err
	}
	log.Infof("loaded %d nodes from %s", len(nodes), cfg.NodeFile)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	setupSignalHandling(cancel, log)

	// Metadata store for per-node outcomes.
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	launcher, closeLauncher, err := buildLauncher(ctx, cfg, nodes, log)
	if err != nil {
		return err
	}
	defer closeLauncher()

	coll, err := collector.New(cfg.LogRoot, cfg.ResultsDir, cfg.AliasFile, log)
	if err != nil {
		return err
	}

	// The collector is single-writer: the background poller must be stopped
	// and drained before the final pass touches the same tables.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	var watcherDone chan struct{}
	if cfg.CollectInterval > 0 {
		interval := time.Duration(cfg.CollectInterval)
		log.Infof("background collector polling every %v", interval)
		watcherDone = make(chan struct{})
		go func() {
			defer close(watcherDone)
			coll.Watch(watchCtx, interval)
		}()
	}

	runStart := time.Now()
	record := func(runID, node, result string) error {
		return db.Add(node, cfg.TestName, result, runID, runStart)
	}

	ctrl := executor.NewController(cfg, nodes, launcher, record, log)
	report, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	stopWatch()
	if watcherDone != nil {
		<-watcherDone
	}

	// Final collection pass picks up everything the poller may have missed,
	// including zero-metric rows for failed jobs.
	if n, err := coll.Scan(true); err != nil {
		log.Warnf("final collection failed: %v", err)
	} else if n > 0 {
		log.Infof("collected %d results", n)
	}
	if path, err := coll.Aggregate(); err != nil {
		log.Warnf("aggregation failed: %v", err)
	} else {
		log.Infof("aggregate table: %s", path)
	}

	formatter := output.NewFormatter(runFlags.jsonOutput)
	if err := formatter.Write(os.Stdout, report); err != nil {
		return err
	}

	if report.Failed() {
		// An error return lets the deferred cleanup run before the process
		// exits nonzero.
		return fmt.Errorf("validation failed: one or more rounds had failing jobs")
	}
	return nil
}

// buildLauncher returns the configured launcher and its cleanup. In SSH mode
// every node is connected up front so a launch failure surfaces before the
// first round.
func buildLauncher(ctx context.Context, cfg *config.Config, nodes []config.Node, log *zap.SugaredLogger) (executor.Launcher, func(), error) {
	if cfg.Launch.Mode != config.LaunchSSH {
		return &executor.LocalLauncher{}, func() {}, nil
	}

	sshCfg := ssh.Config{
		Port:           cfg.Launch.SSH.Port,
		User:           cfg.Launch.SSH.User,
		KeyPath:        cfg.Launch.SSH.KeyPath,
		Password:       cfg.Launch.SSH.Password,
		ConnectTimeout: time.Duration(cfg.Launch.SSH.ConnectTimeout),
	}
	clients := make(map[string]*ssh.Client, len(nodes))
	for _, node := range nodes {
		clients[node.Host] = ssh.NewClient(sshCfg, node.Host)
	}

	g, connectCtx := errgroup.WithContext(ctx)
	for _, client := range clients {
		client := client
		g.Go(func() error {
			if err := client.Connect(connectCtx); err != nil {
				return err
			}
			log.Infof("connected to %s", client.Host())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("SSH connection failed: %w", err)
	}

	cleanup := func() {
		for _, client := range clients {
			if err := client.Close(); err != nil {
				log.Warnf("error closing connection to %s: %v", client.Host(), err)
			}
		}
	}
	return &executor.SSHLauncher{Clients: clients}, cleanup, nil
}

// setupSignalHandling cancels the run context on SIGINT/SIGTERM. The
// executors kill every running process tree before the run exits.
func setupSignalHandling(cancel context.CancelFunc, log *zap.SugaredLogger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warnf("received signal %v, aborting run", sig)
		cancel()
	}()
}
