// CLAUDE:SUMMARY Retention commands: retain/release a document, an id range, or a source's auto-apply set.
package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/reservoir/reservoir"
)

func newRetainCmd(logger *slog.Logger) *cobra.Command {
	return retentionCmd(logger, "retain", "Protect documents from eviction with a named lock", true)
}

func newReleaseCmd(logger *slog.Logger) *cobra.Command {
	return retentionCmd(logger, "release", "Remove a named retention lock", false)
}

// retentionCmd builds retain and release, which share their whole flag
// surface. Targets, in order of precedence: a document id argument, a
// source's auto-apply set (--auto), or an identifier range (--from/--to).
func retentionCmd(logger *slog.Logger, use, short string, retain bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [document-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromCmd(cmd, logger)
			if err != nil {
				return err
			}
			lock, _ := cmd.Flags().GetString("lock")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			sourceID, _ := cmd.Flags().GetString("source")
			auto, _ := cmd.Flags().GetBool("auto")

			switch {
			case len(args) == 1:
				if retain {
					return svc.RetainDocument(args[0], lock)
				}
				return svc.ReleaseDocument(args[0], lock)
			case auto:
				if sourceID == "" {
					return fmt.Errorf("--auto requires --source")
				}
				if retain {
					return svc.RetainSource(sourceID, lock)
				}
				return svc.ReleaseSource(sourceID, lock)
			case from != "" || to != "" || sourceID != "":
				spec := reservoir.RangeSpec{From: from, To: to, SourceID: sourceID, Lock: lock}
				if retain {
					return svc.RetainRange(spec)
				}
				return svc.ReleaseRange(spec)
			default:
				return fmt.Errorf("nothing to %s: give a document id, --from/--to, or --source", use)
			}
		},
	}
	cmd.Flags().String("lock", "", "lock name (default: keep)")
	cmd.Flags().String("from", "", "range start identifier (inclusive)")
	cmd.Flags().String("to", "", "range end identifier (inclusive)")
	cmd.Flags().String("source", "", "restrict to one source")
	cmd.Flags().Bool("auto", false, "target the source's auto-apply lock set instead of documents")
	return cmd
}
