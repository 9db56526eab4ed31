// CLAUDE:SUMMARY Source management commands: add, list, show, update, remove.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/reservoir/reservoir"
)

func newSourceCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source",
		Aliases: []string{"src"},
		Short:   "Manage content sources",
	}
	cmd.AddCommand(
		newSourceAddCmd(logger),
		newSourceListCmd(logger),
		newSourceShowCmd(logger),
		newSourceUpdateCmd(logger),
		newSourceRemoveCmd(logger),
	)
	return cmd
}

func sourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "adapter type (feed, page, or a registered executable)")
	cmd.Flags().StringToString("param", nil, "adapter parameter, repeatable (e.g. --param url=https://…)")
	cmd.Flags().Int64("interval", 0, "poll interval in milliseconds")
	cmd.Flags().Int64("rate-limit", 0, "rate-limit floor in milliseconds")
	cmd.Flags().String("content-key", "", "item field used as the dedup key")
	cmd.Flags().String("policy", "", "duplicate policy: overwrite or keep-both")
	cmd.Flags().StringSlice("auto-lock", nil, "lock names auto-applied to new documents")
}

func newSourceAddCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			typ, _ := cmd.Flags().GetString("type")
			params, _ := cmd.Flags().GetStringToString("param")
			interval, _ := cmd.Flags().GetInt64("interval")
			rateLimit, _ := cmd.Flags().GetInt64("rate-limit")
			contentKey, _ := cmd.Flags().GetString("content-key")
			policy, _ := cmd.Flags().GetString("policy")
			autoLocks, _ := cmd.Flags().GetStringSlice("auto-lock")

			src := &reservoir.Source{
				Name:            args[0],
				Type:            typ,
				Params:          params,
				FetchIntervalMs: interval,
				RateLimitMs:     rateLimit,
				ContentKey:      contentKey,
				DuplicatePolicy: policy,
				AutoLocks:       autoLocks,
			}
			if err := svc.CreateSource(src); err != nil {
				return err
			}
			fmt.Println(src.ID)
			return nil
		},
	}
	sourceFlags(cmd)
	cmd.MarkFlagRequired("type")
	return cmd
}

func newSourceListCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			sources, err := svc.ListSources()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tINTERVAL\tPOLICY\tAUTO LOCKS")
			for _, src := range sources {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					src.ID, src.Name, src.Type,
					time.Duration(src.FetchIntervalMs)*time.Millisecond,
					src.DuplicatePolicy, strings.Join(src.AutoLocks, ","))
			}
			return w.Flush()
		},
	}
}

func newSourceShowCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show <source-id>",
		Short: "Show one source's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			src, err := svc.GetSource(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", src.ID)
			fmt.Fprintf(w, "Name\t%s\n", src.Name)
			fmt.Fprintf(w, "Type\t%s\n", src.Type)
			for k, v := range src.Params {
				fmt.Fprintf(w, "Param %s\t%s\n", k, v)
			}
			fmt.Fprintf(w, "Created\t%s\n", time.UnixMilli(src.CreatedAt).Format(time.RFC3339))
			fmt.Fprintf(w, "Interval\t%s\n", time.Duration(src.FetchIntervalMs)*time.Millisecond)
			fmt.Fprintf(w, "Rate limit\t%s\n", time.Duration(src.RateLimitMs)*time.Millisecond)
			fmt.Fprintf(w, "Content key\t%s\n", src.ContentKey)
			fmt.Fprintf(w, "Policy\t%s\n", src.DuplicatePolicy)
			fmt.Fprintf(w, "Auto locks\t%s\n", strings.Join(src.AutoLocks, ","))
			return w.Flush()
		},
	}
}

func newSourceUpdateCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <source-id>",
		Short: "Update a source (only the given flags change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			var u reservoir.SourceUpdate
			if cmd.Flags().Changed("name") {
				v, _ := cmd.Flags().GetString("name")
				u.Name = &v
			}
			if cmd.Flags().Changed("type") {
				v, _ := cmd.Flags().GetString("type")
				u.Type = &v
			}
			if cmd.Flags().Changed("param") {
				u.Params, _ = cmd.Flags().GetStringToString("param")
			}
			if cmd.Flags().Changed("interval") {
				v, _ := cmd.Flags().GetInt64("interval")
				u.FetchIntervalMs = &v
			}
			if cmd.Flags().Changed("rate-limit") {
				v, _ := cmd.Flags().GetInt64("rate-limit")
				u.RateLimitMs = &v
			}
			if cmd.Flags().Changed("content-key") {
				v, _ := cmd.Flags().GetString("content-key")
				u.ContentKey = &v
			}
			if cmd.Flags().Changed("policy") {
				v, _ := cmd.Flags().GetString("policy")
				u.DuplicatePolicy = &v
			}
			if cmd.Flags().Changed("auto-lock") {
				u.AutoLocks, _ = cmd.Flags().GetStringSlice("auto-lock")
			}
			if _, err := svc.UpdateSource(args[0], &u); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name (the id never changes)")
	sourceFlags(cmd)
	return cmd
}

func newSourceRemoveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <source-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a source and all of its documents",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			return svc.DeleteSource(args[0])
		},
	}
}
