package main

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/myrjola/casebot/cmd/casebot-cli/cases"
	"github.com/myrjola/casebot/cmd/casebot-cli/state"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/spf13/cobra"
	"io/fs"
	"os"
)

func init() {
	rootCmd.PersistentFlags().String("env", ".env", "path to the dotenv file, a missing file is ignored")
	rootCmd.AddGroup(cases.Group)
	rootCmd.AddCommand(cases.Command)
	rootCmd.AddGroup(state.Group)
	rootCmd.AddCommand(state.Command)
}

var rootCmd = &cobra.Command{
	Use:           "casebot-cli",
	Short:         "Inspect and repair the casebot data directory",
	Long:          `Command line utilities for the stores of casebot. Stop the bot before changing anything.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, err := cmd.Flags().GetString("env")
		if err != nil {
			return errors.Wrap(err, "invalid env flag")
		}
		if err = godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, "load dotenv")
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
