// Package state holds the AppState commands.
package state

import (
	"encoding/json"
	"fmt"
	"github.com/myrjola/casebot/internal/backend"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
)

var Group = &cobra.Group{
	ID:    "state",
	Title: "Workflow state operations",
}

func init() {
	Command.AddCommand(Show, Reset)
}

var Command = &cobra.Command{
	Use:     "state",
	GroupID: "state",
	Short:   "Show or reset the persisted workflow state",
}

func open(cmd *cobra.Command) (*backend.Stores, error) {
	logger := logging.NewLogger(cmd.ErrOrStderr(), slog.LevelWarn)
	stores, err := backend.OpenFromEnv(cmd.Context(), logger, os.LookupEnv)
	if err != nil {
		return nil, errors.Wrap(err, "open stores")
	}
	return stores, nil
}

var Show = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted workflow state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stores, err := open(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(stores.States.Load(cmd.Context())), "encode state")
	},
}

var Reset = &cobra.Command{
	Use:   "reset",
	Short: "Return the workflow to Idle",
	Long: `Overwrites the persisted state with Idle. An open case stays on disk and is finalized by the next
start of the bot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stores, err := open(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		if err = stores.States.Reset(cmd.Context()); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "state reset to Idle")
		return nil
	},
}
