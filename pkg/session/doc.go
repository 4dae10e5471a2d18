/*
Package session implements the SessionController: the only component that mutates
reader sessions.

A Controller starts, advances, ends and resumes one story per user. It works in
two modes. In graph mode the story follows a predefined ports.StoryGraph; in
generative mode free-text continuations come from a ports.ChoiceGenerator. Either
way the offered choices go through the selector, so every active turn carries
exactly three distinct choices.

Operations for the same user are serialized with a ref-counted in-process lock,
optionally backed by a ports.DistributedLocker when several replicas share a store.
*/
package session
