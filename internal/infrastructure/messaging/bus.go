package messaging

import (
	"context"
	"errors"
)

var ErrBusClosed = errors.New("relay bus closed")

// Handler processes one message body taken off the bus.
type Handler func(ctx context.Context, body []byte)

// Bus fans messages out to every subscribed instance, the publisher included.
type Bus interface {
	Publish(ctx context.Context, body []byte) error
	// Subscribe blocks, calling handler for each message, until ctx is done or the
	// bus is closed.
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
