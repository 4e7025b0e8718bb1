package worker

import (
	"context"
	"time"

	"wayfindr.app/relay/internal/queue"
	"wayfindr.app/relay/internal/store"
)

// Consumer abstracts the command stream for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Claimer takes over stale pending entries.
type Claimer interface {
	Claim(ctx context.Context, minIdle time.Duration, count int64) ([]queue.Message, error)
}

// StoreProvider exposes the stores a relay transaction writes to.
type StoreProvider interface {
	Messages() store.MessageStore
	Deliveries() store.DeliveryStore
}

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}
