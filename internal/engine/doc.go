// Package engine is the invocation orchestrator. Invoke runs the feasibility
// pre-check, starts the solver through a backend.Backend and classifies what
// came back, always returning a model.Result. Submit does the same in the
// background for the HTTP API, persisting the run and streaming the engine's
// diagnostic lines to subscribers while it runs.
package engine
