package cli

import (
	"fmt"
	"os"

	"allpairs/config"
	"allpairs/pairing"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the all-pairs round schedule",
	Long:  "Generates the parallel-safe round-robin schedule for an item count or a\nnode file and prints it without executing anything.",
	RunE:  runSchedule,
}

var scheduleFlags struct {
	nodes     int
	nodesFile string
	format    string
	verify    bool
}

func init() {
	scheduleCmd.Flags().IntVarP(&scheduleFlags.nodes, "nodes", "n", 0, "Schedule for indices 0..n-1 (ignored with --nodes-file)")
	scheduleCmd.Flags().StringVar(&scheduleFlags.nodesFile, "nodes-file", "", "Host list, one node per line")
	scheduleCmd.Flags().StringVarP(&scheduleFlags.format, "format", "f", "text", "Output format: text, csv, or jsonl")
	scheduleCmd.Flags().BoolVar(&scheduleFlags.verify, "verify", false, "Verify round disjointness and pair coverage")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	n := scheduleFlags.nodes
	if scheduleFlags.nodesFile != "" {
		nodes, err := config.ReadNodeFile(scheduleFlags.nodesFile)
		if err != nil {
			return err
		}
		n = len(nodes)
	}

	sched, err := pairing.Generate(n)
	if err != nil {
		return err
	}

	if scheduleFlags.verify {
		if err := pairing.Verify(sched); err != nil {
			return fmt.Errorf("schedule verification failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "coverage: %d/%d unordered pairs ok\n", sched.PairCount(), n*(n-1)/2)
	}

	return pairing.Render(os.Stdout, sched, pairing.Format(scheduleFlags.format))
}
