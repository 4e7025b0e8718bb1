package vectordb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
)

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimensions is the dense vector size of the collection.
	Dimensions int
}

// Client owns the Qdrant gRPC connection and the name of the telemetry collection.
type Client struct {
	*qdrant.Client
	collection string
	dims       int
}

// New connects to Qdrant and makes sure the telemetry collection exists.
func New(ctx context.Context, cfg Config) (*Client, error) {
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	c := &Client{Client: qc, collection: cfg.Collection, dims: cfg.Dimensions}

	if err := c.EnsureCollection(ctx); err != nil {
		_ = qc.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) Collection() string {
	return c.collection
}

func (c *Client) Dimensions() int {
	return c.dims
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.HealthCheck(ctx)
	return err
}

// EnsureCollection creates the collection with cosine distance and the payload
// indexes used for per-robot filters and time-ordered scrolls.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.CollectionExists(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", c.collection, err)
	}
	if exists {
		return nil
	}

	err = c.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", c.collection, err)
	}

	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{"robot_id", qdrant.FieldType_FieldTypeKeyword},
		{"timestamp_ms", qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err := c.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: c.collection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
		})
		if err != nil {
			return fmt.Errorf("creating %s index: %w", idx.field, err)
		}
	}

	slog.InfoContext(ctx, "qdrant collection created",
		"collection", c.collection,
		"dimensions", c.dims)

	return nil
}
