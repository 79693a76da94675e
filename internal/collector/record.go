// Package collector implements the reference receiver for tracker batches.
package collector

import (
	"context"
	"time"

	"ktrace/pkg/models"
)

// Record is a collected event stamped with the time the collector accepted it.
type Record struct {
	models.Event
	ReceivedAt time.Time `json:"receivedAt"`
}

// Sink stores collected records in arrival order.
type Sink interface {
	Append(ctx context.Context, records []Record) error
	List(ctx context.Context) ([]Record, error)
	Clear(ctx context.Context) error
	Name() string
	Close() error
}

// Forwarder publishes accepted records downstream.
type Forwarder interface {
	Forward(ctx context.Context, records []Record) error
	Close() error
}
