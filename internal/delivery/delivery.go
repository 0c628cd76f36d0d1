// Package delivery defines the transports that expose the identity flows.
package delivery

import "context"

// Delivery is a long-running transport started by the application once Fx has built the graph.
type Delivery interface {
	Serve(ctx context.Context) error
}
