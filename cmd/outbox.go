package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/resilience"
	"github.com/sells-group/leadsync/internal/store"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and re-drive pushes that failed",
}

// -- outbox drain --

var outboxDrainCmd = &cobra.Command{
	Use:         "drain",
	Short:       "Retry every due outbox entry once",
	Annotations: map[string]string{modeAnnotation: "sync"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initSync(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.Relay.Drain(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), rep)
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"Due %d: delivered %d, rescheduled %d, dead %d, dropped %d. Pending %d, dead total %d.\n",
			rep.Due, rep.Delivered, rep.Rescheduled, rep.Dead, rep.Dropped, rep.Pending, rep.DeadTotal)
		return nil
	},
}

// -- outbox status --

var outboxStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List outbox entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		backend, _ := cmd.Flags().GetString("backend")
		limit, _ := cmd.Flags().GetInt("limit")

		// Far-future DueBy lists every entry, not only those due now.
		entries, err := st.DueOutbox(ctx, store.OutboxFilter{
			Status:  resilience.OutboxStatus(status),
			Backend: backend,
			DueBy:   time.Now().AddDate(100, 0, 0),
			Limit:   limit,
		})
		if err != nil {
			return err
		}

		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLEAD\tBACKEND\tSTATUS\tATTEMPTS\tNEXT\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d/%d\t%s\t%s\n",
				e.ID, e.LeadID, e.Backend, e.Status, e.Attempts, e.MaxAttempts,
				e.NextAttemptAt.Local().Format(time.DateTime), truncate(e.Error, 60))
		}
		return w.Flush()
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	outboxStatusCmd.Flags().String("status", "pending", "entry status: pending or dead")
	outboxStatusCmd.Flags().String("backend", "", "only entries for this backend")
	outboxStatusCmd.Flags().Int("limit", 100, "maximum entries to list")

	outboxCmd.AddCommand(outboxDrainCmd, outboxStatusCmd)
	rootCmd.AddCommand(outboxCmd)
}
