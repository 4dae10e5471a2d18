// Package validator checks story graphs for structural problems that the
// load-time integrity check allows: nodes no reader can reach, and nodes from
// which no ending can be reached.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/branchtale/pkg/domain"
)

// Graph is the read-only view the validator needs.
type Graph interface {
	Nodes() []domain.StoryNode
	Entries() []string
}

// Report lists the problems found in a graph. Both slices are sorted.
type Report struct {
	// Unreachable nodes cannot be reached from any opening node.
	Unreachable []string
	// Trapped nodes have no path to a terminal choice or a dead end.
	Trapped []string
}

// OK reports whether no problems were found.
func (r Report) OK() bool {
	return len(r.Unreachable) == 0 && len(r.Trapped) == 0
}

// Err returns nil for a clean report, or an error listing every problem.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	var problems []string
	for _, id := range r.Unreachable {
		problems = append(problems, fmt.Sprintf("node '%s' is unreachable from every opening node", id))
	}
	for _, id := range r.Trapped {
		problems = append(problems, fmt.Sprintf("node '%s' has no path to an ending", id))
	}
	return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
}

// Analyze crawls g forward from its entries and backward from its endings.
func Analyze(g Graph) Report {
	nodes := g.Nodes()
	byID := make(map[string]domain.StoryNode, len(nodes))
	incoming := make(map[string][]string, len(nodes))
	var endings []string
	for _, n := range nodes {
		byID[n.ID] = n
		// Reaching a node without choices ends the story.
		if len(n.Choices) == 0 {
			endings = append(endings, n.ID)
		}
		for _, c := range n.Choices {
			if c.IsTerminal() {
				endings = append(endings, n.ID)
				continue
			}
			incoming[c.Next] = append(incoming[c.Next], n.ID)
		}
	}

	// A fully cyclic story has no entries; any node may open it.
	entries := g.Entries()
	var reached map[string]bool
	if len(entries) > 0 {
		reached = crawl(entries, func(id string) []string {
			var next []string
			for _, c := range byID[id].Choices {
				if !c.IsTerminal() {
					next = append(next, c.Next)
				}
			}
			return next
		})
	}
	canEnd := crawl(endings, func(id string) []string {
		return incoming[id]
	})

	var report Report
	for _, n := range nodes {
		if reached != nil && !reached[n.ID] {
			report.Unreachable = append(report.Unreachable, n.ID)
		}
		if !canEnd[n.ID] {
			report.Trapped = append(report.Trapped, n.ID)
		}
	}
	sort.Strings(report.Unreachable)
	sort.Strings(report.Trapped)
	return report
}

// crawl runs a breadth-first search from start and returns every visited ID.
func crawl(start []string, next func(string) []string) map[string]bool {
	visited := make(map[string]bool)
	queue := append([]string(nil), start...)
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		for _, target := range next(currentID) {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	return visited
}
