package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	m "fx.service/data/models"
	q "fx.service/data/queries"
)

func (pg *Postgres) InsertForecastRun(ctx context.Context, symbol string, horizon, epochs int32) (int32, error) {
	sql := q.Get(q.QueryHelper.Insert.ForecastRun)
	args := pgx.NamedArgs{
		"symbol":  symbol,
		"horizon": horizon,
		"epochs":  epochs,
	}

	var runId int32
	if err := pg.db.QueryRow(ctx, sql, args).Scan(&runId); err != nil {
		return 0, fmt.Errorf("error inserting forecast run history: %w", err)
	}

	return runId, nil
}

func (pg *Postgres) UpdateForecastRunAsSuccess(ctx context.Context, runId int32, rows, windows int32, finalLoss float64) error {
	return pg.updateForecastRun(ctx, pgx.NamedArgs{
		"id":            runId,
		"status":        m.ForecastRunStatusSuccess,
		"rows":          rows,
		"windows":       windows,
		"final_loss":    finalLoss,
		"error_message": nil,
	})
}

func (pg *Postgres) UpdateForecastRunAsFailure(ctx context.Context, runId int32, errorMessage string) error {
	cleanErrorMessage := strings.TrimSpace(errorMessage)
	if cleanErrorMessage == "" {
		return fmt.Errorf("error message is required if forecast run is failing, occurred in %d", runId)
	}

	return pg.updateForecastRun(ctx, pgx.NamedArgs{
		"id":            runId,
		"status":        m.ForecastRunStatusFailure,
		"rows":          nil,
		"windows":       nil,
		"final_loss":    nil,
		"error_message": cleanErrorMessage,
	})
}

func (pg *Postgres) updateForecastRun(ctx context.Context, args pgx.NamedArgs) error {
	sql := q.Get(q.QueryHelper.Update.ForecastRun)
	if _, err := pg.db.Exec(ctx, sql, args); err != nil {
		return fmt.Errorf("error updating forecast run: %w", err)
	}
	return nil
}

// GetRecentForecastRuns returns up to limit runs, newest first.
func (pg *Postgres) GetRecentForecastRuns(ctx context.Context, limit int32) ([]*m.ForecastRun, error) {
	sql := q.Get(q.QueryHelper.Select.RecentForecastRuns)
	res, err := Query[m.ForecastRun](ctx, pg, sql, pgx.NamedArgs{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("unable to get recent forecast runs: %w", err)
	}
	return res, nil
}

// DeleteForecastRunsBefore prunes history older than cutoff and reports how
// many runs were removed.
func (pg *Postgres) DeleteForecastRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sql := q.Get(q.QueryHelper.Delete.ForecastRunsBefore)
	tag, err := pg.db.Exec(ctx, sql, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("error deleting forecast runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
