// Package stories embeds the built-in demo story and themed prompts so the
// CLI can be played without any external files or services.
package stories

import (
	"embed"
	"math/rand/v2"
	"sort"

	"github.com/aretw0/branchtale/pkg/adapters/scripted"
	"github.com/aretw0/branchtale/pkg/graph"
)

//go:embed demo.yaml
var files embed.FS

// DemoFile is the name of the embedded demo story.
const DemoFile = "demo.yaml"

// Demo loads the embedded demo story graph.
func Demo() (*graph.Graph, error) {
	return graph.LoadFS(files, DemoFile)
}

// Themes maps a theme to opening prompts for generative stories.
var Themes = map[string][]string{
	"magic": {
		"A mysterious voice whispers a forgotten spell.",
		"The wizard finds an ancient rune with hidden power.",
		"The book glows, revealing a hidden world inside.",
	},
	"sci-fi": {
		"The spaceship's AI wakes up and speaks for the first time.",
		"A distress signal from deep space suddenly appears.",
		"The scientist accidentally activates an alien artifact.",
	},
	"mystery": {
		"A coded letter arrives at the detective's desk.",
		"A hidden door creaks open in the abandoned mansion.",
		"The protagonist finds an old diary with missing pages.",
	},
}

// ThemeNames returns the theme names in sorted order.
func ThemeNames() []string {
	names := make([]string, 0, len(Themes))
	for name := range Themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RandomPrompt picks an opening prompt for theme. ok is false for an unknown theme.
func RandomPrompt(theme string, r *rand.Rand) (prompt string, ok bool) {
	prompts, ok := Themes[theme]
	if !ok || len(prompts) == 0 {
		return "", false
	}
	if r == nil {
		return prompts[rand.IntN(len(prompts))], true
	}
	return prompts[r.IntN(len(prompts))], true
}

// offlineContinuations feed the offline generator, one batch per attempt.
var offlineContinuations = [][]string{
	{"Follow the strange footprints", "Ask the stranger what they saw", "Hide and wait until nightfall"},
	{"Light a lantern and look closer", "Write down everything you notice", "Call out to whoever is there"},
	{"Take the unexpected shortcut", "Trust the voice in your head", "Turn back and gather your allies"},
	{"Open the locked chest carefully", "Decode the symbols on the wall", "Run toward the distant light"},
}

// OfflineGenerator returns a deterministic generator that cycles through
// canned continuations. It stands in for a language model when none is configured.
func OfflineGenerator() *scripted.Generator {
	return scripted.NewLooping(offlineContinuations...)
}
