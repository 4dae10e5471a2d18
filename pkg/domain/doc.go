/*
Package domain contains the core models of the branchtale narrative engine.

It defines the story graph entities, the per-user Session and the ChoiceSet offered at
each turn. The package is kept free of I/O and persistence, following Hexagonal
Architecture principles: adapters live under pkg/adapters and internal/adapters.

# Key Entities

  - StoryNode: a fixed point in a predefined story graph (prompt + up to 3 choices).
  - Choice: one selectable continuation with an outcome and an optional successor.
  - Session: one user's in-progress or concluded traversal (append-only narrative).
  - ChoiceSet: the exactly-3-element offering shown to the user at each turn.
*/
package domain
