// Package inmemory provides a map-backed storage driver for tests and for
// running the relay without a database.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/exchange"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of exchanges
	mu sync.RWMutex

	// exchanges is keyed by exchange ID
	exchanges map[string]*exchange.Exchange
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		exchanges: make(map[string]*exchange.Exchange),
	}
}

// Put stores a copy of the exchange.
func (d *Driver) Put(_ context.Context, ex *exchange.Exchange) error {
	if ex == nil {
		return errors.New("cannot store nil exchange")
	}
	if ex.ID == "" {
		return errors.New("cannot store exchange without an id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored := *ex
	d.exchanges[ex.ID] = &stored
	return nil
}

// Get retrieves an exchange by ID.
func (d *Driver) Get(_ context.Context, id string) (*exchange.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ex, ok := d.exchanges[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := *ex
	return &out, nil
}

// List returns exchanges newest first.
func (d *Driver) List(_ context.Context, opts storage.ListOptions) ([]*exchange.Exchange, error) {
	opts = opts.Normalize()

	d.mu.RLock()
	all := make([]*exchange.Exchange, 0, len(d.exchanges))
	for _, ex := range d.exchanges {
		out := *ex
		all = append(all, &out)
	}
	d.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return []*exchange.Exchange{}, nil
	}
	all = all[opts.Offset:]

	if opts.Limit < len(all) {
		all = all[:opts.Limit]
	}

	return all, nil
}

// Count returns the number of stored exchanges.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.exchanges), nil
}

// Stats aggregates the stored exchanges.
func (d *Driver) Stats(_ context.Context) (*storage.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := &storage.Stats{BySource: make(map[string]int)}
	for _, ex := range d.exchanges {
		stats.Total++
		if ex.Failed() {
			stats.Failed++
			continue
		}
		stats.BySource[ex.Source]++
	}

	return stats, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
