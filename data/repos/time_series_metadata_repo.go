package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	m "fx.service/data/models"
	q "fx.service/data/queries"
)

func (pg *Postgres) GetMetaDataBySymbol(ctx context.Context, symbol string) (*m.TimeSeriesMetadata, error) {
	sql := q.Get(q.QueryHelper.Select.MetaDataBySymbol)
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	res, err := QuerySingle[m.TimeSeriesMetadata](ctx, pg, sql, args)
	if err != nil {
		return nil, fmt.Errorf("unable to query metadata by symbol (%s): %w", symbol, err)
	}
	return res, nil
}

func (pg *Postgres) InsertNewMetaData(ctx context.Context, metadata *m.TimeSeriesMetadata, tx *pgx.Tx) error {
	sql := q.Get(q.QueryHelper.Insert.Metadata)
	args := pgx.NamedArgs{
		"symbol":         metadata.Symbol,
		"last_refreshed": metadata.LastRefreshed,
	}

	if err := pg.queryRow(ctx, sql, args, tx).Scan(&metadata.Id); err != nil {
		return fmt.Errorf("error inserting new metadata: %w", err)
	}
	return nil
}

func (pg *Postgres) UpdateLastRefreshedDate(ctx context.Context, symbol string, lastRefreshed time.Time, tx *pgx.Tx) error {
	sql := q.Get(q.QueryHelper.Update.LastRefreshedDate)
	args := pgx.NamedArgs{
		"last_refreshed": lastRefreshed,
		"symbol":         symbol,
	}

	if _, err := pg.exec(ctx, sql, args, tx); err != nil {
		return fmt.Errorf("error updating last refreshed date for %s: %w", symbol, err)
	}
	return nil
}
