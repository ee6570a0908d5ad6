// Package evaluator answers field queries by running the fewest providers
// the greedy cover heuristic can find.
//
// # Overview
//
// An Evaluator is built from a field.Universe and a list of providers. Each
// provider declares the ordered list of fields it produces (its eval list).
// The Evaluator validates every eval list, indexes the providers by output
// set and is immutable afterwards; it may be shared freely between
// goroutines.
//
// # Evaluation
//
// For a query (an ordered, duplicate-free list of field names) Eval:
//
//  1. Converts the query to a target FieldSet. A repeated name fails with
//     DuplicateQueryFieldError before anything runs.
//  2. Runs the greedy set-cover solver against the output sets of every
//     registered provider, using the configured tie policy. The winners come
//     back in priority order.
//  3. Resolves each winning set to its provider and executes the winners in
//     reverse priority order, each exactly once. Every provider overwrites
//     the slots of all fields it declares in a per-call working record, so
//     when two winners share a field the value of the higher-priority
//     winner (the one picked first) is the one that survives.
//  4. Records the name of each executed provider in the caller's
//     ExecutionLog, when one is given.
//  5. Copies the queried fields out of the working record in query order.
//
// Provider errors are returned as-is and no partial result is produced.
// Nothing is cached between calls.
//
// # Observability
//
// Eval publishes events.EvalStart/EvalFinish around each call and
// events.ProviderStart/ProviderFinish around each provider on the global
// event bus. Subscribers in the logging, metrics and otel packages turn
// them into log lines, Prometheus series and spans.
package evaluator
