package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/models"
)

//go:generate mockgen -source=client.go -destination=client_mock.go -package=client

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	// Push submits dirty records of one owner, tombstones included.
	Push(ctx context.Context, batch *models.Batch) error
	// Pull returns every record of the owner changed at or after since.
	Pull(ctx context.Context, ownerID string, since time.Time) (*models.Batch, error)
}
