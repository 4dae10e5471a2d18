package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// ChoiceSetSize is the fixed arity of every ChoiceSet offered to a user.
	ChoiceSetSize = 3

	// MinChoiceLength is the exclusive lower bound on a choice's length, in characters.
	MinChoiceLength = 10

	// MaxGeneratedChoiceLength is the exclusive upper bound on a generated choice's length.
	// Authored graph choices are exempt.
	MaxGeneratedChoiceLength = 100
)

// DefaultFallbackChoices pad a ChoiceSet when a source cannot supply enough candidates.
var DefaultFallbackChoices = []string{
	"Investigate the mystery",
	"Confront the challenge",
	"Search for clues",
}

// ChoiceSet holds the continuations offered at one turn.
// It is never persisted; it is recomputed from the narrative on every turn.
// An ended session is answered with an empty ChoiceSet.
type ChoiceSet []string

// Contains reports whether text, trimmed, is one of the offered choices.
func (c ChoiceSet) Contains(text string) bool {
	text = strings.TrimSpace(text)
	for _, s := range c {
		if s == text {
			return true
		}
	}
	return false
}

// ChoiceLength returns the length of a candidate in characters, ignoring surrounding whitespace.
func ChoiceLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

// IsFallbackChoice reports whether text is one of the DefaultFallbackChoices.
func IsFallbackChoice(text string) bool {
	text = strings.TrimSpace(text)
	for _, f := range DefaultFallbackChoices {
		if f == text {
			return true
		}
	}
	return false
}
