package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
)

type queueOpener func(ctx context.Context) (jobs.Queue, func(), error)

// newRootCmd builds the command tree. The returned func releases the queue
// connection opened for the command; call it after Execute whatever the
// outcome, since cobra skips post-run hooks when a command fails.
func newRootCmd(open queueOpener) (*cobra.Command, func()) {
	var (
		queue   jobs.Queue
		release func()
	)

	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Inspect and repair the background job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			q, c, err := open(cmd.Context())
			if err != nil {
				return err
			}
			queue, release = q, c
			return nil
		},
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List failed jobs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			failed, err := queue.Failed(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list failed jobs: %w", err)
			}
			if len(failed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no failed jobs")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tATTEMPTS\tFAILED AT\tLAST ERROR")
			for _, j := range failed {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					j.ID, j.Name, j.Attempts, j.UpdatedAt.Format(time.RFC3339), j.LastError)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of jobs to show")

	requeueCmd := &cobra.Command{
		Use:   "requeue <id>...",
		Short: "Move failed jobs back to the ready queue with attempts reset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, id := range args {
				if err := queue.Requeue(cmd.Context(), id, time.Now()); err != nil {
					errs = append(errs, fmt.Errorf("requeue %s: %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)
			}
			return errors.Join(errs...)
		},
	}

	var confirmed bool
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every failed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to purge without --yes")
			}
			n, err := queue.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge failed jobs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d failed jobs\n", n)
			return nil
		},
	}
	purgeCmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deletion")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := queue.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("count jobs: %w", err)
			}
			for _, s := range []jobs.State{jobs.StateQueued, jobs.StateActive, jobs.StateFailed} {
				fmt.Fprintf(cmd.OutOrStdout(), "%-7s %d\n", s, counts[s])
			}
			return nil
		},
	}

	root.AddCommand(listCmd, requeueCmd, purgeCmd, statsCmd)
	return root, func() {
		if release != nil {
			release()
			release = nil
		}
	}
}
