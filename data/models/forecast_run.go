package models

import (
	"time"

	"github.com/guregu/null/v6"
)

const (
	ForecastRunStatusRunning = "running"
	ForecastRunStatusSuccess = "success"
	ForecastRunStatusFailure = "failure"
)

// ForecastRun is one training attempt as recorded in forecast_run_history.
type ForecastRun struct {
	Id           int32       `db:"id" json:"id"`
	Symbol       string      `db:"symbol" json:"symbol"`
	Horizon      int32       `db:"horizon" json:"horizon"`
	Epochs       int32       `db:"epochs" json:"epochs"`
	Rows         null.Int32  `db:"rows" json:"rows"`
	Windows      null.Int32  `db:"windows" json:"windows"`
	FinalLoss    null.Float  `db:"final_loss" json:"final_loss"`
	Status       string      `db:"status" json:"status"`
	ErrorMessage null.String `db:"error_message" json:"error_message"`
	StartedAt    time.Time   `db:"started_at" json:"started_at"`
	FinishedAt   null.Time   `db:"finished_at" json:"finished_at"`
}
