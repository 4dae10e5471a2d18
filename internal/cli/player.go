package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/branchtale/internal/presentation/tui"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/session"
	"golang.org/x/term"
)

// StartFunc opens the first turn of a play-through.
type StartFunc func(ctx context.Context) (*session.Turn, error)

// Player runs an interactive story in a terminal.
// Typing a number picks that choice; any other text is offered as a free-form
// continuation. "end" concludes the story; "exit", "quit" or EOF leave it
// saved for later.
type Player struct {
	ctrl   *session.Controller
	userID string
	in     *bufio.Scanner
	out    io.Writer
	render tui.Renderer
}

// NewPlayer creates a Player for userID reading from in and writing to out.
// A nil render prints text unchanged.
func NewPlayer(ctrl *session.Controller, userID string, in io.Reader, out io.Writer, render tui.Renderer) *Player {
	if render == nil {
		render = tui.PlainRenderer
	}
	return &Player{
		ctrl:   ctrl,
		userID: userID,
		in:     bufio.NewScanner(in),
		out:    out,
		render: render,
	}
}

// RendererFor returns a glamour renderer when f is a terminal and the plain
// renderer otherwise.
func RendererFor(f *os.File) tui.Renderer {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return tui.PlainRenderer
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 80
	}
	return tui.NewRenderer(width)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Play starts the story with start and loops until the story ends, the
// reader leaves, or ctx is cancelled.
func (p *Player) Play(ctx context.Context, start StartFunc) error {
	turn, err := start(ctx)
	if err != nil {
		return err
	}
	p.show(nil, turn)

	for {
		if turn.Ended() {
			p.system("The End.")
			return nil
		}
		p.showChoices(turn.Choices)

		fmt.Fprint(p.out, "> ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			fmt.Fprintln(p.out)
			p.system("Progress saved for '%s'.", p.userID)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(p.in.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			p.system("Progress saved for '%s'.", p.userID)
			return nil
		case "end":
			final, err := p.ctrl.End(ctx, p.userID)
			if err != nil {
				return err
			}
			p.show(turn.Session, &session.Turn{Session: final})
			p.system("The End.")
			return nil
		}

		next, err := p.ctrl.Advance(ctx, p.userID, p.resolve(line, turn.Choices))
		if errors.Is(err, domain.ErrInvalidInput) {
			p.system("%v", err)
			continue
		}
		if err != nil {
			return err
		}
		p.show(turn.Session, next)
		turn = next
	}
}

// resolve maps a choice number to its text.
func (p *Player) resolve(line string, choices domain.ChoiceSet) string {
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1]
	}
	return line
}

// show prints only the narrative segments appended since prev.
func (p *Player) show(prev *domain.Session, turn *session.Turn) {
	diff := domain.Diff(prev, turn.Session)
	if diff == nil {
		return
	}
	for _, segment := range diff.Appended {
		rendered, err := p.render(segment)
		if err != nil {
			rendered = segment
		}
		fmt.Fprintln(p.out, strings.TrimRight(rendered, "\n"))
		fmt.Fprintln(p.out)
	}
}

func (p *Player) showChoices(choices domain.ChoiceSet) {
	for i, c := range choices {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, c)
	}
}

func (p *Player) system(format string, args ...any) {
	fmt.Fprintf(p.out, ">>> %s\n", fmt.Sprintf(format, args...))
}
