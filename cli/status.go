package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"allpairs/store"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest recorded outcome per node",
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent validation runs",
	RunE:  runHistory,
}

var storeFlags struct {
	dbPath string
	node   string
	limit  int
}

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, historyCmd} {
		cmd.Flags().StringVar(&storeFlags.dbPath, "db", "validation.db", "Path to the metadata database")
	}
	statusCmd.Flags().StringVar(&storeFlags.node, "node", "", "Filter by node name")
	historyCmd.Flags().IntVar(&storeFlags.limit, "limit", 20, "Number of rows")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := store.Open(storeFlags.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.LatestStatus(storeFlags.node)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tTEST\tLATEST\tRESULT")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Node, row.Test, formatEpoch(row.Timestamp), row.Result)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := store.Open(storeFlags.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.History(storeFlags.limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tTEST\tTIMESTAMP\tRESULT\tRUN")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.Node, row.Test, formatEpoch(row.Timestamp), row.Result, row.RunID)
	}
	return w.Flush()
}

func formatEpoch(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}
