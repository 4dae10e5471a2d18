// Package mcp exposes reader sessions as Model Context Protocol tools, so an
// agent can play a story on behalf of a user.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/branchtale"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/internal/presentation/graph"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const graphURI = "branchtale://graph"

// TurnResponse is the structured result of every session tool.
type TurnResponse struct {
	Session *domain.Session  `json:"session" jsonschema_description:"The reader session after the operation"`
	Choices domain.ChoiceSet `json:"choices" jsonschema_description:"The continuations to offer next; empty once ended"`
	Ended   bool             `json:"ended" jsonschema_description:"Whether the story is over"`
}

type startArgs struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt,omitempty"`
	NodeID string `json:"node_id,omitempty"`
	Random bool   `json:"random,omitempty"`
}

type chooseArgs struct {
	UserID string `json:"user_id"`
	Choice string `json:"choice"`
}

type userArgs struct {
	UserID string `json:"user_id"`
}

// inspectable is implemented by graphs that can list their nodes.
type inspectable interface {
	Nodes() []domain.StoryNode
	Entries() []string
}

// Server wraps a session.Controller and exposes it as an MCP server.
type Server struct {
	ctrl      *session.Controller
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. A nil logger discards logs.
func NewServer(ctrl *session.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		ctrl:      ctrl,
		logger:    logger,
		mcpServer: server.NewMCPServer("branchtale-mcp", strings.TrimSpace(branchtale.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_story",
		mcp.WithDescription("Start a new story for a user, replacing any previous one. Give exactly one of prompt, node_id or random."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Reader identifier")),
		mcp.WithString("prompt", mcp.Description("Opening text for a generative story")),
		mcp.WithString("node_id", mcp.Description("Opening node of the story graph")),
		mcp.WithBoolean("random", mcp.Description("Start at a random opening node")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	chooseTool := mcp.NewTool("choose",
		mcp.WithDescription("Advance the user's story with one of the offered choices or, in generative stories, any free text."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Reader identifier")),
		mcp.WithString("choice", mcp.Required(), mcp.Description("The chosen continuation")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(chooseTool, mcp.NewStructuredToolHandler(s.handleChoose))

	endTool := mcp.NewTool("end_story",
		mcp.WithDescription("Conclude the user's story."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Reader identifier")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(endTool, mcp.NewStructuredToolHandler(s.handleEnd))

	resumeTool := mcp.NewTool("resume_story",
		mcp.WithDescription("Return the user's stored story with fresh choices."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Reader identifier")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the story graph as a Mermaid flowchart."),
		mcp.WithString("user_id", mcp.Description("Highlight this reader's path")),
	), s.handleGetGraph)
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args startArgs) (TurnResponse, error) {
	var (
		turn *session.Turn
		err  error
	)
	if args.Random {
		turn, err = s.ctrl.StartRandom(ctx, args.UserID, nil)
	} else {
		turn, err = s.ctrl.Start(ctx, args.UserID, session.StartRequest{Prompt: args.Prompt, NodeID: args.NodeID})
	}
	if err != nil {
		s.logger.Warn("MCP start_story failed", "user_id", args.UserID, "error", err)
		return TurnResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return toResponse(turn), nil
}

func (s *Server) handleChoose(ctx context.Context, _ mcp.CallToolRequest, args chooseArgs) (TurnResponse, error) {
	turn, err := s.ctrl.Advance(ctx, args.UserID, args.Choice)
	if err != nil {
		s.logger.Warn("MCP choose failed", "user_id", args.UserID, "error", err)
		return TurnResponse{}, fmt.Errorf("choose failed: %w", err)
	}
	return toResponse(turn), nil
}

func (s *Server) handleEnd(ctx context.Context, _ mcp.CallToolRequest, args userArgs) (TurnResponse, error) {
	final, err := s.ctrl.End(ctx, args.UserID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("end failed: %w", err)
	}
	return toResponse(&session.Turn{Session: final}), nil
}

func (s *Server) handleResume(ctx context.Context, _ mcp.CallToolRequest, args userArgs) (TurnResponse, error) {
	turn, err := s.ctrl.Resume(ctx, args.UserID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("resume failed: %w", err)
	}
	return toResponse(turn), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, ok := s.ctrl.Graph().(inspectable)
	if !ok {
		return mcp.NewToolResultError("no story graph loaded"), nil
	}
	var overlay *graph.Overlay
	if userID := request.GetString("user_id", ""); userID != "" {
		current, err := s.ctrl.Session(ctx, userID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		overlay = graph.OverlayFromSession(current)
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(g.Nodes(), g.Entries(), overlay)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Story Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		g, ok := s.ctrl.Graph().(inspectable)
		if !ok {
			return nil, fmt.Errorf("no story graph loaded")
		}
		jsonBytes, err := json.Marshal(g.Nodes())
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func toResponse(t *session.Turn) TurnResponse {
	choices := t.Choices
	if choices == nil {
		choices = domain.ChoiceSet{}
	}
	return TurnResponse{Session: t.Session, Choices: choices, Ended: t.Ended()}
}
