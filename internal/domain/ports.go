package domain

import "context"

// CommandChannel is a secondary port for the server's line-oriented control connection.
// Connect returns immediately; the outcome is published as StateChange values.
// Send never blocks and reports failures asynchronously.
type CommandChannel interface {
	Connect(ep Endpoint)
	Send(command string)
	State() StateChange
	Close() error
}

// StatusFetcher is a secondary port returning the server's plain-text status report.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, ep Endpoint) (string, error)
}
