// Package storage defines how exchanges are persisted.
package storage

import (
	"context"

	"github.com/papercomputeco/chatrelay/pkg/exchange"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// ListOptions selects a page of exchanges.
type ListOptions struct {
	// Limit is the maximum number of exchanges returned. Zero selects
	// DefaultListLimit.
	Limit int

	// Offset skips this many of the newest exchanges.
	Offset int
}

// Normalize applies defaults and clamps negative values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Stats summarizes the stored exchanges.
type Stats struct {
	Total    int            `json:"total_exchanges"`
	Failed   int            `json:"failed_exchanges"`
	BySource map[string]int `json:"by_source"`
}

// Driver defines the interface for persisting and retrieving exchanges in a
// storage backend.
type Driver interface {
	// Put stores an exchange. Storing an exchange whose ID already exists
	// replaces it.
	Put(ctx context.Context, ex *exchange.Exchange) error

	// Get retrieves an exchange by ID. Returns NotFoundError when absent.
	Get(ctx context.Context, id string) (*exchange.Exchange, error)

	// List returns exchanges newest first.
	List(ctx context.Context, opts ListOptions) ([]*exchange.Exchange, error)

	// Count returns the number of stored exchanges.
	Count(ctx context.Context) (int, error)

	// Stats aggregates the stored exchanges.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store and releases any resources.
	Close() error
}
