// CLAUDE:SUMMARY Document and store commands: list, cat, evict, config set-budget, adapter register.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/reservoir/reservoir"
)

func newListCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			var f reservoir.ListFilter
			f.SourceID, _ = cmd.Flags().GetString("source")
			f.Locks, _ = cmd.Flags().GetStringSlice("lock")
			f.Offset, _ = cmd.Flags().GetInt("offset")
			f.Limit, _ = cmd.Flags().GetInt("limit")
			if cmd.Flags().Changed("retained") {
				v, _ := cmd.Flags().GetBool("retained")
				f.Retained = &v
			}
			docs, err := svc.ListDocuments(f)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tFETCHED\tSIZE\tLOCKS\tLOCATION")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					d.Item.ID, d.SourceID, fmtMillis(d.Item.FetchedAt),
					d.Size, strings.Join(d.Item.Locks, ","), d.Item.Location)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("source", "", "restrict to one source")
	cmd.Flags().Bool("retained", false, "true: locked documents only; false: unlocked only")
	cmd.Flags().StringSlice("lock", nil, "documents carrying any of these lock names")
	cmd.Flags().Int("offset", 0, "skip the first N documents")
	cmd.Flags().Int("limit", 0, "show at most N documents (0 = all)")
	return cmd
}

func newCatCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <document-id>",
		Short: "Print a document's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			content, err := svc.ReadDocument(args[0])
			if err != nil {
				return err
			}
			fmt.Print(content)
			return nil
		},
	}
}

func newEvictCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "evict",
		Short: "Run one eviction pass against the size budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			if err := svc.Evict(); err != nil {
				return err
			}
			usage, err := svc.Usage()
			if err != nil {
				return err
			}
			if budget := svc.SizeBudget(); budget > 0 {
				fmt.Printf("usage: %d / %d bytes\n", usage, budget)
			} else {
				fmt.Printf("usage: %d bytes (no budget)\n", usage)
			}
			return nil
		},
	}
}

func newConfigCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage reservoir configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-budget <bytes>",
		Short: "Set the size budget; lowering it evicts immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			bytes, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid byte count %q", args[0])
			}
			return svc.SetSizeBudget(bytes)
		},
	})
	return cmd
}

func newAdapterCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapter",
		Short: "Manage source adapters",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register <name> <path>",
		Short: "Register an executable as a source type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			return svc.RegisterAdapter(args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List available source types",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			types, err := svc.AdapterTypes()
			if err != nil {
				return err
			}
			for _, t := range types {
				fmt.Println(t)
			}
			return nil
		},
	})
	return cmd
}
