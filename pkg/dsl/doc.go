/*
Package dsl provides a Go DSL for programmatically constructing branchtale story graphs.

It allows developers to define stories with a fluent builder instead of YAML or JSON
files. This is particularly useful for unit tests and generated stories.

Example usage:

	b := dsl.New()

	b.Add("hall").
		Title("The Mansion").
		Prompt("A hidden door creaks open in the abandoned mansion.").
		Choice("Step through the door", "Dust swirls around you.", "cellar").
		End("Run back outside", "You flee into the night.")

	b.Add("cellar").
		Prompt("Stairs lead down into a cold cellar.").
		End("Open the letter", "It names you as heir.")

	g, err := b.Build() // *graph.Graph, validated
*/
package dsl
