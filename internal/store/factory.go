package store

import (
	"wayfindr.app/relay/core/db"
	"wayfindr.app/relay/core/vectordb"
)

type Stores struct {
	queries *db.Queries
	qdrant  *vectordb.Client
}

// NewStores binds the relational stores to queries and the telemetry store to
// qdrant. Either may be nil when the caller only needs the other side; a
// transaction-bound Stores typically has no qdrant client.
func NewStores(queries *db.Queries, qdrant *vectordb.Client) *Stores {
	return &Stores{queries: queries, qdrant: qdrant}
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.queries)
}

func (s *Stores) Deliveries() DeliveryStore {
	return newDeliveryStore(s.queries)
}

func (s *Stores) Telemetry() TelemetryStore {
	return newTelemetryStore(s.qdrant)
}
