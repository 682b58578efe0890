// Package stream defines the message-consumer contract and its factory.
package stream

import "context"

// Consumer pulls evaluation requests off a message stream and feeds
// them through the engine.
type Consumer interface {
	Setup(ctx context.Context) error
	Start(ctx context.Context) error
	Stop() error
}
