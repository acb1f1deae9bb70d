// Package cases holds the case store commands.
package cases

import (
	"encoding/json"
	"fmt"
	"github.com/myrjola/casebot/internal/backend"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"
)

var ErrMissingFiles = errors.NewSentinel("case has missing files")

var Group = &cobra.Group{
	ID:    "cases",
	Title: "Case operations",
}

func init() {
	Delete.Flags().Bool("yes", false, "confirm the deletion")
	Command.AddCommand(List, Show, Verify, Delete)
}

var Command = &cobra.Command{
	Use:     "cases",
	GroupID: "cases",
	Short:   "List, inspect, verify and delete cases",
}

func open(cmd *cobra.Command) (*backend.Stores, error) {
	logger := logging.NewLogger(cmd.ErrOrStderr(), slog.LevelWarn)
	stores, err := backend.OpenFromEnv(cmd.Context(), logger, os.LookupEnv)
	if err != nil {
		return nil, errors.Wrap(err, "open stores")
	}
	return stores, nil
}

var List = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stores, err := open(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		snapshot, err := stores.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
		_, _ = fmt.Fprintln(w, "ID\tRECEIVED\tFINISHED\tEVIDENCE\t")
		for _, o := range snapshot.Cases {
			finished := "-"
			if o.Finished() {
				finished = o.FinishedAt.Format(time.DateTime)
			}
			if o.ID == snapshot.State.CaseID() {
				finished = "active"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t\n", o.ID, o.ReceivedAt.Format(time.DateTime), finished,
				o.EvidenceCount)
		}
		return errors.Wrap(w.Flush(), "flush table")
	},
}

var Show = &cobra.Command{
	Use:   "show [case id]",
	Short: "Print the case record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := open(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		c, err := stores.Cases.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(c), "encode case")
	},
}

var Verify = &cobra.Command{
	Use:   "verify [case id]",
	Short: "Check that every file referenced by the case exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := open(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		missing, err := stores.Cases.Verify(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, rel := range missing {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "missing %s\n", rel)
		}
		if len(missing) > 0 {
			return errors.Wrap(ErrMissingFiles, "verify", slog.Int("missing", len(missing)))
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var Delete = &cobra.Command{
	Use:   "delete [case id]",
	Short: "Delete a case and all of its files",
	Long:  `Deletes the case container. The active case cannot be deleted, discard it in the bot instead.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, err := cmd.Flags().GetBool("yes")
		if err != nil {
			return errors.Wrap(err, "invalid yes flag")
		}
		if !yes {
			return errors.New("refusing to delete without --yes")
		}
		stores, err := open(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		if stores.States.Load(cmd.Context()).CaseID() == args[0] {
			return errors.Wrap(errors.ErrConcurrencyViolation, "case is active", slog.String("case_id", args[0]))
		}
		if _, err = stores.Cases.Load(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err = stores.Cases.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}
