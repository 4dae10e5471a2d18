/*
Package branchtale is an interactive narrative engine: a reader advances a story
one choice at a time, and every step is saved so the story can be resumed later.

# Concept

A story runs in one of two modes. In graph mode the choices come from an authored
story graph (nodes with prompts, choices, outcomes and successors) that is
validated once when it is loaded. In generative mode a language model proposes
continuations of the narrative so far, and a selector keeps asking until it has
three distinct, usable choices, padding with fallbacks when the model misbehaves.

Progress is written through a ProgressStore after every transition. Backends for
memory, JSON files, Redis and SQLite are provided; operations on one reader are
serialized, and different readers proceed in parallel.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/branchtale"
	)

	func main() {
		// The bundled demo story, kept in memory.
		ctrl, err := branchtale.New()
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		turn, err := ctrl.StartRandom(ctx, "reader-1", nil)
		if err != nil {
			log.Fatal(err)
		}

		for !turn.Ended() {
			fmt.Println(turn.Session.Narrative[len(turn.Session.Narrative)-1])
			// In a real app the reader picks one of turn.Choices.
			turn, err = ctrl.Advance(ctx, "reader-1", turn.Choices[0])
			if err != nil {
				log.Fatal(err)
			}
		}
	}
*/
package branchtale
