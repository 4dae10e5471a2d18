package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/branchtale/internal/cli"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/internal/presentation/tui"
	"github.com/aretw0/branchtale/internal/stories"
	"github.com/aretw0/branchtale/pkg/session"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a story in the terminal",
	Long: `Starts (or resumes) a story and reads choices from standard input.

Type a choice number to pick it. In generative stories any other text is used
as your own continuation. Type 'end' to finish the story, or 'exit' to leave
it saved for later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cli.SignalContext(context.Background())
		defer cancel()

		offline, _ := cmd.Flags().GetBool("offline")
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = "warn"
		}
		lvl, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		app, err := openApp(ctx, cmd, cli.BuildOptions{
			Logger:  logging.NewWithWriter(os.Stderr, lvl),
			Offline: offline,
		})
		if err != nil {
			return err
		}
		defer app.Close()

		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			userID = uuid.NewString()
		}
		start, err := startFunc(cmd, app.Controller, userID)
		if err != nil {
			return err
		}

		if cli.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout)
		}
		fmt.Printf(">>> Playing as '%s'.\n\n", userID)

		player := cli.NewPlayer(app.Controller, userID, os.Stdin, os.Stdout, cli.RendererFor(os.Stdout))
		return player.Play(ctx, start)
	},
}

// startFunc picks how the story begins from the play flags.
func startFunc(cmd *cobra.Command, ctrl *session.Controller, userID string) (cli.StartFunc, error) {
	resume, _ := cmd.Flags().GetBool("resume")
	prompt, _ := cmd.Flags().GetString("prompt")
	node, _ := cmd.Flags().GetString("node")
	theme, _ := cmd.Flags().GetString("theme")

	switch {
	case resume:
		return func(ctx context.Context) (*session.Turn, error) {
			return ctrl.Resume(ctx, userID)
		}, nil
	case prompt != "" || node != "":
		return func(ctx context.Context) (*session.Turn, error) {
			return ctrl.Start(ctx, userID, session.StartRequest{Prompt: prompt, NodeID: node})
		}, nil
	case theme != "":
		opening, ok := stories.RandomPrompt(theme, nil)
		if !ok {
			return nil, fmt.Errorf("unknown theme %q (want %s)", theme, strings.Join(stories.ThemeNames(), ", "))
		}
		return func(ctx context.Context) (*session.Turn, error) {
			return ctrl.Start(ctx, userID, session.StartRequest{Prompt: opening})
		}, nil
	default:
		return func(ctx context.Context) (*session.Turn, error) {
			return ctrl.StartRandom(ctx, userID, nil)
		}, nil
	}
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("user", "", "Reader ID (defaults to a new random ID)")
	playCmd.Flags().String("prompt", "", "Start a generative story from this opening")
	playCmd.Flags().String("node", "", "Start the story graph at this node")
	playCmd.Flags().String("theme", "", "Start a generative story from a random "+strings.Join(stories.ThemeNames(), "/")+" opening")
	playCmd.Flags().Bool("resume", false, "Resume the reader's saved story")
	playCmd.Flags().Bool("offline", false, "Use canned continuations instead of a language model")
	playCmd.MarkFlagsMutuallyExclusive("resume", "prompt", "node", "theme")
}
