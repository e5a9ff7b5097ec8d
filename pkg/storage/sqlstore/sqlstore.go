// Package sqlstore implements storage.Driver on top of ent's SQL dialect
// driver. The sqlite and postgres packages wrap it with their own
// connection setup.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/chatrelay/pkg/exchange"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	exchangesTable = "exchanges"

	columnID             = "id"
	columnMessage        = "message"
	columnReply          = "reply"
	columnSource         = "source"
	columnShape          = "shape"
	columnEvents         = "events"
	columnSkipped        = "skipped"
	columnUpstreamStatus = "upstream_status"
	columnError          = "error"
	columnDurationMs     = "duration_ms"
	columnCreatedAt      = "created_at"
)

// columns lists the exchange columns in scan order.
var columns = []string{
	columnID,
	columnMessage,
	columnReply,
	columnSource,
	columnShape,
	columnEvents,
	columnSkipped,
	columnUpstreamStatus,
	columnError,
	columnDurationMs,
	columnCreatedAt,
}

var (
	// ExchangesColumns holds the columns for the "exchanges" table.
	ExchangesColumns = []*schema.Column{
		{Name: columnID, Type: field.TypeString, Unique: true},
		{Name: columnMessage, Type: field.TypeString, Size: 2147483647},
		{Name: columnReply, Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: columnSource, Type: field.TypeString, Default: ""},
		{Name: columnShape, Type: field.TypeString, Default: ""},
		{Name: columnEvents, Type: field.TypeInt, Default: 0},
		{Name: columnSkipped, Type: field.TypeInt, Default: 0},
		{Name: columnUpstreamStatus, Type: field.TypeInt, Default: 0},
		{Name: columnError, Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: columnDurationMs, Type: field.TypeInt64, Default: 0},
		{Name: columnCreatedAt, Type: field.TypeTime},
	}

	// ExchangesTable holds the schema information for the "exchanges" table.
	ExchangesTable = &schema.Table{
		Name:       exchangesTable,
		Columns:    ExchangesColumns,
		PrimaryKey: []*schema.Column{ExchangesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "exchange_created_at",
				Unique:  false,
				Columns: []*schema.Column{ExchangesColumns[10]},
			},
		},
	}
)

// Driver implements storage.Driver with an ent SQL driver.
// It is database-agnostic and is embedded by the specific drivers.
type Driver struct {
	drv *entsql.Driver
}

// New wraps drv and runs the schema migration.
func New(ctx context.Context, drv *entsql.Driver) (*Driver, error) {
	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s migration: %w", drv.Dialect(), err)
	}

	if err := migrate.Create(ctx, ExchangesTable); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{drv: drv}, nil
}

// DB returns the underlying database handle.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

// Put stores an exchange, replacing any existing row with the same ID.
func (d *Driver) Put(ctx context.Context, ex *exchange.Exchange) error {
	if ex == nil {
		return errors.New("cannot store nil exchange")
	}
	if ex.ID == "" {
		return errors.New("cannot store exchange without an id")
	}

	query, args := d.upsert(ex).Query()

	var res sql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to store exchange %s: %w", ex.ID, err)
	}

	return nil
}

func (d *Driver) upsert(ex *exchange.Exchange) *entsql.InsertBuilder {
	return entsql.Dialect(d.drv.Dialect()).
		Insert(exchangesTable).
		Columns(columns...).
		Values(
			ex.ID, ex.Message, ex.Reply, ex.Source, ex.Shape, ex.Events, ex.Skipped,
			ex.UpstreamStatus, ex.Error, ex.DurationMs, ex.CreatedAt.UTC(),
		).
		OnConflict(
			entsql.ConflictColumns(columnID),
			entsql.ResolveWithNewValues(),
		)
}

// Get retrieves an exchange by ID.
func (d *Driver) Get(ctx context.Context, id string) (*exchange.Exchange, error) {
	selector := d.selectExchanges().Where(entsql.EQ(columnID, id))

	found, err := d.query(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange %s: %w", id, err)
	}
	if len(found) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}

	return found[0], nil
}

// List returns exchanges newest first.
func (d *Driver) List(ctx context.Context, opts storage.ListOptions) ([]*exchange.Exchange, error) {
	opts = opts.Normalize()

	found, err := d.query(ctx, d.page(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}

	return found, nil
}

func (d *Driver) selectExchanges() *entsql.Selector {
	return entsql.Dialect(d.drv.Dialect()).
		Select(columns...).
		From(entsql.Table(exchangesTable))
}

func (d *Driver) page(opts storage.ListOptions) *entsql.Selector {
	return d.selectExchanges().
		OrderBy(entsql.Desc(columnCreatedAt), entsql.Desc(columnID)).
		Limit(opts.Limit).
		Offset(opts.Offset)
}

// Count returns the number of stored exchanges.
func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.count(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return n, nil
}

// Stats aggregates the stored exchanges.
func (d *Driver) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{BySource: make(map[string]int)}

	var err error
	if stats.Total, err = d.count(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to aggregate exchanges: %w", err)
	}
	if stats.Failed, err = d.count(ctx, entsql.NEQ(columnError, "")); err != nil {
		return nil, fmt.Errorf("failed to aggregate failed exchanges: %w", err)
	}

	query, args := entsql.Dialect(d.drv.Dialect()).
		Select(columnSource, entsql.Count("*")).
		From(entsql.Table(exchangesTable)).
		Where(entsql.EQ(columnError, "")).
		GroupBy(columnSource).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to aggregate exchange sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan exchange source: %w", err)
		}
		stats.BySource[source] = n
	}

	return stats, rows.Err()
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.drv.Close()
}

func (d *Driver) count(ctx context.Context, where *entsql.Predicate) (int, error) {
	selector := entsql.Dialect(d.drv.Dialect()).
		Select(entsql.Count("*")).
		From(entsql.Table(exchangesTable))
	if where != nil {
		selector.Where(where)
	}

	query, args := selector.Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func (d *Driver) query(ctx context.Context, selector *entsql.Selector) ([]*exchange.Exchange, error) {
	query, args := selector.Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*exchange.Exchange{}
	for rows.Next() {
		var ex exchange.Exchange
		err := rows.Scan(
			&ex.ID, &ex.Message, &ex.Reply, &ex.Source, &ex.Shape, &ex.Events, &ex.Skipped,
			&ex.UpstreamStatus, &ex.Error, &ex.DurationMs, &ex.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex.CreatedAt = ex.CreatedAt.UTC()
		out = append(out, &ex)
	}

	return out, rows.Err()
}
