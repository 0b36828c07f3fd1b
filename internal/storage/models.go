package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"palmbudget/internal/policy"
)

// SweepEvent is a persisted audit record of one executed sweep.
type SweepEvent struct {
	ID          int64
	User        string
	Source      string
	Destination string
	Amount      decimal.Decimal
	YieldBps    int64
	SweptAt     time.Time
	CreatedAt   time.Time
}

// UserConfig is a user's persisted sweep configuration row. Nil fields
// mean "never set"; reads fall back to the system defaults.
type UserConfig struct {
	User           string
	Authorized     bool
	MinimumBalance *decimal.Decimal
	Ratio          *policy.SplitRatio
	UpdatedAt      time.Time
}
