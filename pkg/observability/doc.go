/*
Package observability turns session and selector events into Prometheus metrics
and structured log lines.

Metrics registers its collectors on an injected prometheus.Registerer, so tests
and embedders can keep them off the global registry. Hooks and SelectorHooks plug
the collectors into a session.Controller and a selector.Selector; Combine fans one
event out to several hook sets.
*/
package observability
