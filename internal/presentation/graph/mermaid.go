// Package graph renders story graphs as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/branchtale/pkg/domain"
)

// endNodeID is the synthetic sink every terminal choice points to.
const endNodeID = "__end"

// Overlay marks a reader's progress on the chart.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromSession builds an Overlay from a session's path.
func OverlayFromSession(s *domain.Session) *Overlay {
	if s == nil {
		return nil
	}
	return &Overlay{
		VisitedNodes: append([]string(nil), s.Path...),
		CurrentNode:  s.CurrentNodeID,
	}
}

// GenerateMermaid produces a Mermaid flowchart from story nodes.
// Shapes:
//   - Opening node (listed in entries): ((Circle))
//   - Other nodes: [Rectangle]
//   - The end: ([Stadium]), drawn once if any choice is terminal
//
// Edges are labeled with the choice text. Overlay styles are applied when given.
func GenerateMermaid(nodes []domain.StoryNode, entries []string, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	isEntry := make(map[string]bool, len(entries))
	for _, id := range entries {
		isEntry[id] = true
	}

	hasEnd := false
	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		if isEntry[node.ID] {
			opener, closer = "((", "))"
		}

		label := node.ID
		if node.Title != "" {
			label = node.Title
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer)

		for _, c := range node.Choices {
			target := sanitizeMermaidID(c.Next)
			arrow := "-->"
			if c.IsTerminal() {
				target = endNodeID
				arrow = "-.->"
				hasEnd = true
			}
			fmt.Fprintf(&sb, "    %s %s|\"%s\"| %s\n", safeID, arrow, escapeLabel(c.Text), target)
		}
	}
	if hasEnd {
		fmt.Fprintf(&sb, "    %s([\"The End\"])\n", endNodeID)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
