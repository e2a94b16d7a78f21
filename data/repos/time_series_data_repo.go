package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"

	m "fx.service/data/models"
	q "fx.service/data/queries"
)

const timeSeriesDataTable = "fx_time_series_data"

var timeSeriesDataColumns = []string{
	"source_id", "timestamp", "open", "high", "low", "close", "volume",
}

// GetTimeSeriesData returns the stored bars for symbol, oldest first.
func (pg *Postgres) GetTimeSeriesData(ctx context.Context, symbol string) ([]*m.TimeSeriesData, error) {
	sql := q.Get(q.QueryHelper.Select.TimeSeriesData)
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	res, err := Query[m.TimeSeriesData](ctx, pg, sql, args)
	if err != nil {
		return nil, fmt.Errorf("unable to query data by symbol (%s): %w", symbol, err)
	}
	return res, nil
}

// GetMostRecentTimestampForSymbol returns nil when nothing is stored yet.
func (pg *Postgres) GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error) {
	sql := q.Get(q.QueryHelper.Select.MostRecentTimestampBySymbol)
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	var latest null.Time
	if err := pg.db.QueryRow(ctx, sql, args).Scan(&latest); err != nil {
		return nil, fmt.Errorf("unable to query most recent timestamp (%s): %w", symbol, err)
	}
	return latest.Ptr(), nil
}

// InsertTimeSeriesData copies data in. When sourceId is set it overrides the
// source on every row.
func (pg *Postgres) InsertTimeSeriesData(ctx context.Context, data []*m.TimeSeriesData, sourceId *int32, tx *pgx.Tx) (int64, error) {
	entries := make([][]any, len(data))
	for i, ent := range data {
		id := ent.SourceId
		if sourceId != nil {
			id = *sourceId
		}
		entries[i] = []any{
			id, ent.Timestamp, ent.Open, ent.High, ent.Low, ent.Close, ent.Volume,
		}
	}

	ct, err := pg.BulkInsert(ctx, timeSeriesDataTable, timeSeriesDataColumns, entries, tx)
	if err != nil {
		return 0, fmt.Errorf("error inserting time series data: %w", err)
	}
	return ct, nil
}

// DeleteTimeSeriesDataSince drops the bars of a source stamped at or after
// since, so a re-fetched window can be copied over them.
func (pg *Postgres) DeleteTimeSeriesDataSince(ctx context.Context, sourceId int32, since time.Time, tx *pgx.Tx) (int64, error) {
	sql := q.Get(q.QueryHelper.Delete.TimeSeriesDataSince)
	args := pgx.NamedArgs{
		"source_id": sourceId,
		"since":     since,
	}

	tag, err := pg.exec(ctx, sql, args, tx)
	if err != nil {
		return 0, fmt.Errorf("error deleting time series data since %s: %w", since.Format(time.DateOnly), err)
	}
	return tag.RowsAffected(), nil
}
