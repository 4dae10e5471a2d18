package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/branchtale/pkg/adapters/memory"
	"github.com/aretw0/branchtale/pkg/adapters/scripted"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/dsl"
	"github.com/aretw0/branchtale/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := dsl.New()
	b.Add("tower").Prompt("The wizard's tower hums with power.").
		Choice("Climb the spiral stairs", "Each step glows.", "roof").
		End("Walk away from the tower", "The humming fades.")
	b.Add("roof").Prompt("Stars swirl above the roof.").
		End("Reach for the nearest star", "It is warm.")
	ctrl := session.New(memory.NewStore(),
		session.WithGraph(b.MustBuild()),
		session.WithGenerator(scripted.NewLooping([]string{"Cast a spell of light", "Read the ancient book", "Call out to the owl"})),
	)
	return NewServer(ctrl, nil)
}

func TestServer_GraphStoryTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	res, err := s.handleStart(ctx, req, startArgs{UserID: "merlin", NodeID: "tower"})
	require.NoError(t, err)
	assert.False(t, res.Ended)
	assert.Equal(t, "Climb the spiral stairs", res.Choices[0])

	res, err = s.handleChoose(ctx, req, chooseArgs{UserID: "merlin", Choice: "Climb the spiral stairs"})
	require.NoError(t, err)
	assert.Equal(t, "roof", res.Session.CurrentNodeID)

	res, err = s.handleResume(ctx, req, userArgs{UserID: "merlin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tower", "roof"}, res.Session.Path)

	res, err = s.handleEnd(ctx, req, userArgs{UserID: "merlin"})
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Empty(t, res.Choices)

	_, err = s.handleChoose(ctx, req, chooseArgs{UserID: "merlin", Choice: "Reach for the nearest star"})
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestServer_GenerativeStoryTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleStart(ctx, mcp.CallToolRequest{}, startArgs{UserID: "vivian", Prompt: "A wizard discovers a hidden portal."})
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceSet{"Cast a spell of light", "Read the ancient book", "Call out to the owl"}, res.Choices)

	_, err = s.handleStart(ctx, mcp.CallToolRequest{}, startArgs{UserID: "vivian"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err = s.handleStart(ctx, mcp.CallToolRequest{}, startArgs{UserID: "vivian", Random: true})
	require.NoError(t, err)
	assert.Equal(t, "tower", res.Session.CurrentNodeID)
}

func TestServer_GetGraph(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetGraph(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "graph TD")
	assert.Contains(t, text.Text, "tower((")
}

func TestServer_GetGraphWithReader(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, startArgs{UserID: "merlin", NodeID: "tower"})
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"user_id": "merlin"}
	res, err := s.handleGetGraph(ctx, req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "classDef")

	req.Params.Arguments = map[string]any{"user_id": "nobody"}
	res, err = s.handleGetGraph(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
