package queries

import (
	"embed"
	"fmt"
)

//go:embed delete/*.sql insert/*.sql select/*.sql update/*.sql
var Files embed.FS

// ^^^ the go:embed directive is used to embed the files in the queries package
// meaning on compile time it will convert the files to binary data and embed it in the queries package

type DeleteQueries struct {
	ForecastRunsBefore  string
	TimeSeriesDataSince string
}

type InsertQueries struct {
	Metadata    string
	ForecastRun string
}

type SelectQueries struct {
	MetaDataBySymbol            string
	MostRecentTimestampBySymbol string
	RecentForecastRuns          string
	TimeSeriesData              string
}

type UpdateQueries struct {
	ForecastRun       string
	LastRefreshedDate string
}

type QueryHelperStruct struct {
	Delete DeleteQueries
	Insert InsertQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Delete: DeleteQueries{
		ForecastRunsBefore:  "delete/forecast_runs_before.sql",
		TimeSeriesDataSince: "delete/time_series_data_since.sql",
	},
	Insert: InsertQueries{
		Metadata:    "insert/metadata.sql",
		ForecastRun: "insert/forecast_run.sql",
	},
	Select: SelectQueries{
		MetaDataBySymbol:            "select/meta_data_by_symbol.sql",
		MostRecentTimestampBySymbol: "select/most_recent_timestamp_by_symbol.sql",
		RecentForecastRuns:          "select/recent_forecast_runs.sql",
		TimeSeriesData:              "select/time_series_data.sql",
	},
	Update: UpdateQueries{
		ForecastRun:       "update/forecast_run.sql",
		LastRefreshedDate: "update/last_refreshed_date.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
