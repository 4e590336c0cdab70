// Package paper implements a position-sizing, risk-managed paper trading
// engine: it turns qualified signals into simulated positions against a
// virtual account, and tracks realized/unrealized PnL.
package paper

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of a position.
type Direction string

const (
	DirectionYes Direction = "YES"
	DirectionNo  Direction = "NO"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	ReasonStopLoss   CloseReason = "STOP_LOSS (-40%)"
	ReasonTakeProfit CloseReason = "TAKE_PROFIT (+50%)"
	ReasonResolution CloseReason = "RESOLUTION"
)

// Position is an open simulated bet.
type Position struct {
	ID                string          `json:"id"`
	MarketID          string          `json:"marketId"`
	Question          string          `json:"question"`
	Direction         Direction       `json:"direction"`
	EntryPrice        decimal.Decimal `json:"entryPrice"`
	Size              decimal.Decimal `json:"size"`
	Shares            decimal.Decimal `json:"shares"`
	QualityScore      int             `json:"qualityScore"`
	Catalyst          string          `json:"catalyst"`
	HoursToResolution *float64        `json:"hoursToResolution,omitempty"`
	EntryTime         time.Time       `json:"entryTime"`
}

// ClosedTrade is the record of a closed position.
type ClosedTrade struct {
	ID           string          `json:"id"`
	MarketID     string          `json:"marketId"`
	Question     string          `json:"question"`
	Direction    Direction       `json:"direction"`
	EntryPrice   decimal.Decimal `json:"entryPrice"`
	ExitPrice    decimal.Decimal `json:"exitPrice"`
	Size         decimal.Decimal `json:"size"`
	Shares       decimal.Decimal `json:"shares"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   float64         `json:"pnlPercent"`
	Reason       CloseReason     `json:"reason"`
	QualityScore int             `json:"qualityScore"`
	EntryTime    time.Time       `json:"entryTime"`
	ExitTime     time.Time       `json:"exitTime"`
}

// State is the full persisted state of the engine.
type State struct {
	Balance         decimal.Decimal       `json:"balance"`
	StartingBalance decimal.Decimal       `json:"startingBalance"`
	Positions       map[string]*Position  `json:"positions"` // marketId -> position
	ClosedTrades    []ClosedTrade         `json:"closedTrades"`
	TradedMarketIDs map[string]struct{}   `json:"-"`
	TradedMarketIDsList []string          `json:"tradedMarketIds"`
	LossStreak      int                   `json:"lossStreak"`
	Paused          bool                  `json:"paused"`
	PausedUntil     *time.Time            `json:"pausedUntil,omitempty"`
}

func newID() string {
	return uuid.New().String()
}

// DailyReport summarises the account's status as of now.
type DailyReport struct {
	Balance        decimal.Decimal
	StartingBalance decimal.Decimal
	TotalPnL       decimal.Decimal
	TodayTrades    []ClosedTrade
	TodayWinCount  int
	TodayWinRate   float64
	AvgWinPercent  float64
	AvgLossPercent float64
	OpenPositions  []*Position
	LossStreak     int
	Paused         bool
}
