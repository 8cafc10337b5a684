package models

import "time"

// BacktestRun identifies one simulated day for one strategy model.
type BacktestRun struct {
	ID        string             `json:"run_id"`
	Date      time.Time          `json:"date"`
	Ticker    string             `json:"ticker"`
	Model     int                `json:"model"`
	Strategy  StrategyParameters `json:"strategy"`
	StartedAt time.Time          `json:"started_at"`
	Trades    int                `json:"trades"`
	NetPnL    float64            `json:"net_pnl"`
}
