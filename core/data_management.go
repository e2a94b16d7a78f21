package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fx.service/api/yahoo"
	ex "fx.service/data/extensions"
	m "fx.service/data/models"
)

// ErrRecentlySynced is returned by SyncSymbolTimeSeriesData when the symbol
// was refreshed within the configured sync interval.
var ErrRecentlySynced = errors.New("symbol was synced recently")

// syncOverlapDays is how many stored days are replaced on every sync. The
// latest bar carries an intraday close until the day settles.
const syncOverlapDays = 5

// SyncSymbolTimeSeriesData pulls the daily bars of symbol from a few days
// before the newest stored one, replaces that window and records the refresh
// time, all in one transaction.
func (sc *ServiceContext) SyncSymbolTimeSeriesData(ctx context.Context, symbol string) (time.Time, error) {
	log := sc.Log.WithField("symbol", symbol)

	md, err := sc.Postgres.GetMetaDataBySymbol(ctx, symbol)
	if err != nil {
		return time.Time{}, fmt.Errorf("error determining if meta data exists in sync data: %w", err)
	}

	if md == nil {
		log.Info("adding new symbol to db")
		md = &m.TimeSeriesMetadata{
			Symbol:        symbol,
			LastRefreshed: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		if err := sc.Postgres.InsertNewMetaData(ctx, md, nil); err != nil {
			return time.Time{}, fmt.Errorf("error adding %s to db: %w", symbol, err)
		}
	}

	cutoff := time.Now().Add(-sc.Config.Forecast.SyncInterval)
	if md.LastRefreshed.After(cutoff) {
		return md.LastRefreshed, fmt.Errorf("%w: %s at %s", ErrRecentlySynced, symbol, ex.FmtLong(md.LastRefreshed))
	}

	mrd, err := sc.Postgres.GetMostRecentTimestampForSymbol(ctx, symbol)
	if err != nil {
		return time.Time{}, fmt.Errorf("error getting most recent time series date for symbol %s: %w", symbol, err)
	}

	// a short range is enough once the history is stored
	tr := yahoo.TimeRangeMax
	if mrd != nil && mrd.After(time.Now().AddDate(0, 0, -20)) {
		tr = yahoo.TimeRangeOneMonth
	}

	tsr, err := sc.YahooClient.GetDailyHistory(ctx, symbol, tr)
	if err != nil {
		return time.Time{}, err
	}

	var since time.Time
	if mrd != nil {
		since = dateOf(*mrd, jakarta).AddDate(0, 0, -syncOverlapDays)
	}
	f := func(t *m.TimeSeriesData) bool { return mrd == nil || !t.Timestamp.Before(since) }
	toInsert := ex.FilterMultiplePtr(tsr.TimeSeries, f)

	tx, err := sc.Postgres.GetTransaction(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	var ra, removed int64
	if len(toInsert) > 0 {
		if mrd != nil {
			removed, err = sc.Postgres.DeleteTimeSeriesDataSince(ctx, md.Id, since, &tx)
			if err != nil {
				return time.Time{}, err
			}
		}

		ra, err = sc.Postgres.InsertTimeSeriesData(ctx, toInsert, &md.Id, &tx)
		if err != nil {
			return time.Time{}, err
		}
	}

	refreshed := time.Now().UTC()
	if err := sc.Postgres.UpdateLastRefreshedDate(ctx, symbol, refreshed, &tx); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("error committing transaction to sync symbol %s: %w", symbol, err)
	}

	log.WithFields(logrus.Fields{
		"received": len(tsr.TimeSeries),
		"replaced": removed,
		"inserted": ra,
		"range":    tr.Range(),
	}).Info("synced time series")
	return refreshed, nil
}

// GetSymbolHistory returns the daily bars of symbol, oldest first. With a
// database the stored history is synced and read back, otherwise the full
// history is fetched from Yahoo.
func (sc *ServiceContext) GetSymbolHistory(ctx context.Context, symbol string) ([]*m.TimeSeriesData, error) {
	if sc.Postgres == nil {
		tsr, err := sc.YahooClient.GetDailyHistory(ctx, symbol, yahoo.TimeRangeMax)
		if err != nil {
			return nil, err
		}
		return tsr.TimeSeries, nil
	}

	if _, err := sc.SyncSymbolTimeSeriesData(ctx, symbol); err != nil {
		entry := sc.Log.WithError(err).WithField("symbol", symbol)
		if errors.Is(err, ErrRecentlySynced) {
			entry.Debug("skipping sync")
		} else {
			entry.Warn("error syncing time series, using stored history")
		}
	}

	return sc.Postgres.GetTimeSeriesData(ctx, symbol)
}

// LoadUSDIDRHistory returns the cleaned USD/IDR business-day series.
func (sc *ServiceContext) LoadUSDIDRHistory(ctx context.Context) ([]Bar, error) {
	data, err := sc.GetSymbolHistory(ctx, yahoo.SymbolUSDIDR)
	if err != nil {
		return nil, fmt.Errorf("error loading %s history: %w", yahoo.SymbolUSDIDR, err)
	}

	bars := CleanHistory(data, jakarta)
	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable %s history", yahoo.SymbolUSDIDR)
	}
	return bars, nil
}
