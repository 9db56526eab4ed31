// CLAUDE:SUMMARY Daemon lifecycle commands: fetch, daemon, status, stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newFetchCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <source-id>",
		Short: "Fetch a source once, immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			docs, err := svc.FetchNow(ctx, args[0])
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Printf("%s\t%s\n", d.Item.ID, d.Item.Location)
			}
			return nil
		},
	}
}

func newDaemonCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the polling scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return svc.Run(ctx)
		},
	}
}

func newStatusCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and per-source fetch status",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil {
				return err
			}
			if !st.Running {
				fmt.Println("daemon: not running")
			} else {
				fmt.Printf("daemon: running (pid %d, since %s)\n",
					st.PID, time.UnixMilli(st.StartedAt).Format(time.RFC3339))
			}
			if len(st.Sources) == 0 {
				return nil
			}
			ids := make([]string, 0, len(st.Sources))
			for id := range st.Sources {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tLAST ATTEMPT\tLAST SUCCESS\tATTEMPTS\tERROR")
			for _, id := range ids {
				ss := st.Sources[id]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					id, fmtMillis(ss.LastAttempt), fmtMillis(ss.LastSuccess),
					ss.Attempts, ss.LastError)
			}
			return w.Flush()
		},
	}
}

func newStopCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal the running daemon to terminate gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			return svc.Stop()
		},
	}
}

func fmtMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}
