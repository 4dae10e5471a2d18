package main

import (
	"fmt"

	"github.com/aretw0/branchtale/internal/validator"
	"github.com/aretw0/branchtale/pkg/graph"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <story-file>...",
	Short: "Check story graphs for consistency",
	Long: `Loads each story file and reports missing nodes, short or repeated choices,
nodes no reader can reach, and nodes with no path to an ending.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			g, err := graph.LoadFile(path)
			if err != nil {
				fmt.Printf("%s: validation failed: %v\n", path, err)
				failed++
				continue
			}
			if err := validator.Analyze(g).Err(); err != nil {
				fmt.Printf("%s: validation failed: %v\n", path, err)
				failed++
				continue
			}
			fmt.Printf("%s: %d nodes, entries %v. Graph is valid! ✅\n", path, g.Len(), g.Entries())
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d story files are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
