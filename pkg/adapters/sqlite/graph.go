package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/graph"
)

// ErrNoStories is returned by LoadGraph when the stories table is empty.
var ErrNoStories = fmt.Errorf("%w: no stories stored", domain.ErrInvalidGraph)

// SeedGraph writes every node of g into the stories and choices tables,
// replacing any previously stored graph.
func (s *Store) SeedGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM choices`); err != nil {
		return fmt.Errorf("clear choices: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stories`); err != nil {
		return fmt.Errorf("clear stories: %w", err)
	}

	nodes := g.Nodes()
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stories (story_id, title, prompt) VALUES (?, ?, ?)`,
			n.ID, n.Title, n.Prompt,
		); err != nil {
			return fmt.Errorf("insert story %s: %w", n.ID, err)
		}
	}
	for _, n := range nodes {
		for i, c := range n.Choices {
			var next sql.NullString
			if !c.IsTerminal() {
				next = sql.NullString{String: c.Next, Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO choices (story_id, position, choice_id, choice_text, outcome, next_story_id)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				n.ID, i, c.ID, c.Text, c.Outcome, next,
			); err != nil {
				return fmt.Errorf("insert choice %s#%d: %w", n.ID, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// LoadGraph reads the stored stories and choices and validates them into a Graph.
func (s *Store) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT story_id, title, prompt FROM stories ORDER BY story_id`)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	var (
		order []string
		nodes = map[string]*domain.StoryNode{}
	)
	for rows.Next() {
		var n domain.StoryNode
		if err := rows.Scan(&n.ID, &n.Title, &n.Prompt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan story: %w", err)
		}
		nodes[n.ID] = &n
		order = append(order, n.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	if len(order) == 0 {
		return nil, ErrNoStories
	}

	rows, err = s.sqlDB.QueryContext(ctx,
		`SELECT story_id, choice_id, choice_text, outcome, next_story_id
		 FROM choices ORDER BY story_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query choices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			storyID string
			c       domain.Choice
			next    sql.NullString
		)
		if err := rows.Scan(&storyID, &c.ID, &c.Text, &c.Outcome, &next); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		c.Next = next.String
		if n, ok := nodes[storyID]; ok {
			n.Choices = append(n.Choices, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate choices: %w", err)
	}

	out := make([]domain.StoryNode, 0, len(order))
	for _, id := range order {
		out = append(out, *nodes[id])
	}
	return graph.New(out...)
}
