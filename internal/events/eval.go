package events

import "time"

// EvalStart is emitted before an Evaluator plans a query.
type EvalStart struct {
	Query []string
}

// EvalFinish is emitted when an evaluation returns, successfully or not.
// Providers lists the providers that ran, in execution order.
type EvalFinish struct {
	Query     []string
	Providers []string
	Err       error
	Duration  time.Duration
}

// ProviderStart is emitted before a provider computes.
type ProviderStart struct {
	Provider string
	Outputs  []string
}

// ProviderFinish is emitted after a provider returns.
type ProviderFinish struct {
	Provider string
	Outputs  []string
	Err      error
	Duration time.Duration
}
