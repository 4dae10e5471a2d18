/*
Package ports defines the driven ports (interfaces) for the branchtale engine.

These interfaces decouple the session controller from external implementations, allowing
the engine to work with various storage backends, story sources and text generators.

# Key Interfaces

  - StoryGraph: read-only access to predefined story nodes.
  - ChoiceGenerator: opaque capability that proposes continuation text.
  - ProgressStore: persists and loads a user's Session as one unit.
  - DistributedLocker: optional cross-instance serialization of a user's requests.
*/
package ports
