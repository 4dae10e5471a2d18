package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/branchtale/internal/cli"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved reader progress",
	Long:  `List, inspect and end the reader sessions held by the configured progress store.`,
}

func openQuietApp(cmd *cobra.Command) (*cli.App, error) {
	return openApp(cmd.Context(), cmd, cli.BuildOptions{Logger: logging.NewNop(), Offline: true})
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List readers with saved progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openQuietApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		users, err := app.Controller.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No saved sessions found.")
			return nil
		}

		fmt.Println("Saved Sessions:")
		for _, u := range users {
			fmt.Println("- " + u)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <user-id>",
	Short: "Print a reader's session and current choices as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openQuietApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		turn, err := app.Controller.Resume(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}

		data, err := json.MarshalIndent(turn, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling session: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <user-id>...",
	Short: "End one or more readers' stories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openQuietApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		failed := 0
		for _, userID := range args {
			if _, err := app.Controller.End(cmd.Context(), userID); err != nil {
				fmt.Printf("Error ending '%s': %v\n", userID, err)
				failed++
				continue
			}
			fmt.Printf("Ended session '%s'\n", userID)
		}
		if failed > 0 {
			return fmt.Errorf("failed to end %d session(s)", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionEndCmd)
}
