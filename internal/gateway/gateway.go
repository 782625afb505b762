package gateway

import "context"

// Gateway defines the interface for inbound request surfaces.
type Gateway interface {
	// Start begins serving and blocks until the gateway stops.
	Start() error
	// Stop gracefully shuts down the gateway.
	Stop(ctx context.Context) error
}
