package models

import (
	"time"

	"github.com/guregu/null/v6"
)

type TimeSeriesResult struct {
	Metadata   *TimeSeriesMetadata
	TimeSeries []*TimeSeriesData
}

type TimeSeriesMetadata struct {
	Id            int32     `db:"id"`
	Symbol        string    `db:"symbol"`
	LastRefreshed time.Time `db:"last_refreshed"`
	Currency      string    `db:"-"`
	TimeZone      string    `db:"-"`
}

// TimeSeriesData is one bar. Yahoo reports holidays and gaps as nulls, so
// every price field is nullable.
type TimeSeriesData struct {
	SourceId  int32      `db:"source_id"`
	Timestamp time.Time  `db:"timestamp"`
	Open      null.Float `db:"open"`
	High      null.Float `db:"high"`
	Low       null.Float `db:"low"`
	Close     null.Float `db:"close"`
	Volume    null.Float `db:"volume"`
}
