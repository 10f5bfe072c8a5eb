package transports

import "context"

// Transport is the I/O boundary between clients and the turn pipeline.
// Implementations own their network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// ReadyReporter lets transports expose readiness metadata such as listen URLs.
// It is used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
