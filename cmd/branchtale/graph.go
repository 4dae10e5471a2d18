package main

import (
	"fmt"

	"github.com/aretw0/branchtale/internal/cli"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the story graph as a Mermaid diagram",
	Long:  `Prints the story graph as a Mermaid flowchart (graph TD). With --user, the reader's path and current node are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd, cli.BuildOptions{Logger: logging.NewNop(), Offline: true})
		if err != nil {
			return err
		}
		defer app.Close()

		var overlay *graph.Overlay
		if userID, _ := cmd.Flags().GetString("user"); userID != "" {
			current, err := app.Controller.Session(cmd.Context(), userID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromSession(current)
		}

		fmt.Print(graph.GenerateMermaid(app.Graph.Nodes(), app.Graph.Entries(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("user", "", "Highlight this reader's progress")
}
