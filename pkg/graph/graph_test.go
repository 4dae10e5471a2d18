package graph_test

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/graph"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StoryGraph = (*graph.Graph)(nil)

func mansion() []domain.StoryNode {
	return []domain.StoryNode{
		{
			ID:     "hall",
			Title:  "The Mansion",
			Prompt: "A hidden door creaks open in the abandoned mansion.",
			Choices: []domain.Choice{
				{ID: "c1", Text: "Step through the door", Outcome: "Dust swirls around you.", Next: "cellar"},
				{ID: "c2", Text: "Call out for help", Outcome: "Only echoes answer.", Next: "cellar"},
				{ID: "c3", Text: "Run back outside", Outcome: "You flee into the night."},
			},
		},
		{
			ID:     "cellar",
			Prompt: "Stairs lead down into a cold cellar.",
			Choices: []domain.Choice{
				{ID: "c4", Text: "Open the letter", Outcome: "It names you as heir."},
			},
		},
	}
}

func TestNew_ValidGraph(t *testing.T) {
	g, err := graph.New(mansion()...)
	require.NoError(t, err)

	node, err := g.NodeByID("hall")
	require.NoError(t, err)
	assert.Equal(t, "The Mansion", node.Title)

	choices := g.ChoicesOf(node)
	require.Len(t, choices, 3)
	assert.Equal(t, "Step through the door", choices[0].Text)
	assert.True(t, choices[2].IsTerminal())

	assert.Equal(t, []string{"hall"}, g.Entries())
	assert.Equal(t, 2, g.Len())
}

func TestNew_IntegrityErrors(t *testing.T) {
	nodes := mansion()
	nodes[1].Choices[0].Next = "attic"
	nodes = append(nodes, domain.StoryNode{ID: "hall", Prompt: "dup"})

	_, err := graph.New(nodes...)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidGraph)

	var integrity *graph.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Len(t, integrity.Problems, 2)
	assert.Contains(t, err.Error(), "missing node 'attic'")
	assert.Contains(t, err.Error(), "duplicate node ID 'hall'")
}

func TestNew_TooManyChoices(t *testing.T) {
	node := domain.StoryNode{ID: "x", Prompt: "Crossroads at dusk."}
	for i := 0; i < 4; i++ {
		node.Choices = append(node.Choices, domain.Choice{Text: "Walk somewhere far away"})
	}
	_, err := graph.New(node)
	assert.ErrorIs(t, err, domain.ErrInvalidGraph)
}

func TestNodeByID_NotFound(t *testing.T) {
	g, err := graph.New(mansion()...)
	require.NoError(t, err)

	_, err = g.NodeByID("attic")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestNodeByID_ReturnsCopy(t *testing.T) {
	g, err := graph.New(mansion()...)
	require.NoError(t, err)

	node, _ := g.NodeByID("hall")
	node.Choices[0].Text = "tampered"

	again, _ := g.NodeByID("hall")
	assert.Equal(t, "Step through the door", again.Choices[0].Text)
}

func TestRandomEntry(t *testing.T) {
	g, err := graph.New(mansion()...)
	require.NoError(t, err)

	node, err := g.RandomEntry(rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, "hall", node.ID)
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlDoc := `
title: Letters
nodes:
  - id: desk
    prompt: A coded letter arrives at the detective's desk.
    choices:
      - text: Decode the letter
        outcome: The code spells a street name.
        next: street
  - id: street
    prompt: Fog rolls over the street.
    choices:
      - text: Knock on the door
        outcome: Nobody answers, the story ends.
`
	yamlPath := filepath.Join(dir, "story.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDoc), 0644))

	g, err := graph.LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	jsonDoc := `{"nodes":[{"id":"a","prompt":"Start here.","choices":[{"text":"Go to b now","next":"b"}]},{"id":"b","prompt":"End."}]}`
	jsonPath := filepath.Join(dir, "story.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(jsonDoc), 0644))

	g, err = graph.LoadFile(jsonPath)
	require.NoError(t, err)
	node, err := g.NodeByID("a")
	require.NoError(t, err)
	assert.Equal(t, "b", node.Choices[0].Next)
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := graph.Parse([]byte("title: nothing\n"), ".yaml")
	assert.ErrorIs(t, err, domain.ErrInvalidGraph)
}

func TestNew_ChoiceTextRules(t *testing.T) {
	_, err := graph.New(domain.StoryNode{
		ID:     "x",
		Prompt: "A fork in the road.",
		Choices: []domain.Choice{
			{Text: "Go left"},
			{Text: "Take the right path"},
			{Text: "  Take the right path "},
		},
	})
	require.Error(t, err)

	var integrity *graph.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Len(t, integrity.Problems, 2)
	assert.Contains(t, err.Error(), "must be longer than 10 characters")
	assert.Contains(t, err.Error(), "repeats choice 'Take the right path'")
}
