package validator_test

import (
	"testing"

	"github.com/aretw0/branchtale/internal/stories"
	"github.com/aretw0/branchtale/internal/validator"
	"github.com/aretw0/branchtale/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_DemoIsClean(t *testing.T) {
	g, err := stories.Demo()
	require.NoError(t, err)

	report := validator.Analyze(g)
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
}

func TestAnalyze_FindsProblems(t *testing.T) {
	b := dsl.New()
	b.Add("start").Prompt("Two corridors split ahead.").
		Choice("Take the left corridor", "It smells of smoke.", "left").
		End("Go back to bed early", "Sweet dreams.")
	b.Add("left").Prompt("A burning room.").
		Choice("Take the left corridor again", "You walk in circles.", "left")
	// "loop-a" and "loop-b" only point at each other, so neither is an entry.
	b.Add("loop-a").Prompt("A mirror hall.").
		Choice("Step into the mirror", "You see yourself.", "loop-b")
	b.Add("loop-b").Prompt("Another mirror hall.").
		Choice("Step out of the mirror", "You see yourself again.", "loop-a").
		End("Break the glass at last", "Silence.")
	g, err := b.Build()
	require.NoError(t, err)

	report := validator.Analyze(g)
	assert.Equal(t, []string{"loop-a", "loop-b"}, report.Unreachable)
	assert.Equal(t, []string{"left"}, report.Trapped)

	err = report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 3 errors")
	assert.Contains(t, err.Error(), "node 'left' has no path to an ending")
}

func TestAnalyze_CyclicStoryWithoutEntries(t *testing.T) {
	b := dsl.New()
	b.Add("day").Prompt("The sun rises.").
		Choice("Wait for the night to come", "Hours pass.", "night")
	b.Add("night").Prompt("The moon rises.").
		Choice("Wait for the day to come", "Hours pass.", "day").
		End("Sleep through it all", "Goodnight.")
	g, err := b.Build()
	require.NoError(t, err)
	require.Empty(t, g.Entries())

	assert.True(t, validator.Analyze(g).OK())
}

func TestAnalyze_DeadEndCountsAsEnding(t *testing.T) {
	b := dsl.New()
	b.Add("stairs").Prompt("Stone steps lead down into the dark.").
		Choice("Descend into the cellar", "The door slams shut.", "cellar")
	b.Add("cellar").Prompt("Water drips somewhere in the dark.")
	g, err := b.Build()
	require.NoError(t, err)

	assert.True(t, validator.Analyze(g).OK())
}
